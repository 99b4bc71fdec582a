// Package cli provides the taskrag command line interface.
package cli

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/core/ports/driving"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services holds the driving ports the commands run against.
// Any field may be nil when its backing provider is not configured.
type Services struct {
	RAG       driving.RAGService
	Ingest    driving.IngestService
	Breakdown driving.BreakdownService
	Executor  driving.ExecutorService
	Review    driving.ReviewService

	// Projects resolves project names to task manager IDs.
	Projects ProjectResolver

	// Embedding and Chat back the models command.
	Embedding driven.EmbeddingService
	Chat      driven.ChatProvider

	// Warnings are non-fatal start-up problems shown to the user.
	Warnings []string

	// Close releases the adapters behind the services.
	Close func()
}

// ProjectResolver maps a project name to its task manager ID.
type ProjectResolver interface {
	GetOrCreateProjectID(ctx context.Context, name string) string
}

// Bootstrap builds the services from the current settings.
type Bootstrap func(ctx context.Context, settings *domain.AppSettings) (*Services, error)

var (
	settingsService driving.SettingsService
	bootstrap       Bootstrap

	servicesOnce sync.Once
	services     *Services
	servicesErr  error

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "taskrag",
	Short: "Knowledge base answers, task breakdown and automation from the terminal",
	Long: `taskrag answers questions from a local knowledge base, compares
retrieval strategies, breaks feature requests into Todoist tasks, works
through those tasks with a tool-calling model and reviews GitHub pull
requests.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")
}

// Configure injects the settings service and the service bootstrap.
func Configure(settings driving.SettingsService, boot Bootstrap) {
	settingsService = settings
	bootstrap = boot
	resetServices()
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// loadServices builds the services once per process.
func loadServices(cmd *cobra.Command) (*Services, error) {
	servicesOnce.Do(func() {
		if settingsService == nil || bootstrap == nil {
			servicesErr = errors.New("services not configured")
			return
		}
		settings, err := settingsService.Get()
		if err != nil {
			servicesErr = err
			return
		}
		services, servicesErr = bootstrap(commandContext(cmd), settings)
		if servicesErr == nil {
			for _, w := range services.Warnings {
				cmd.PrintErrln(warnStyle.Render("warning: " + w))
			}
		}
	})
	return services, servicesErr
}

func closeServices() {
	if services != nil && services.Close != nil {
		services.Close()
	}
}

func resetServices() {
	closeServices()
	servicesOnce = sync.Once{}
	services = nil
	servicesErr = nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
