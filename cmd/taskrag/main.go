// Command taskrag answers questions from a local knowledge base, breaks
// feature requests into Todoist tasks and works through them with a
// tool-calling model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/taskrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/taskrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/taskrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/taskrag/internal/core/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// Secrets such as TODOIST_TOKEN may live in a local .env file.
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settings := services.NewSettingsService(configStore, ai.NewConfigValidator())

	cli.SetVersion(version)
	cli.Configure(settings, bootstrap)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cli.Execute(ctx)
}
