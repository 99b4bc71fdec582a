package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.PullRequestSource = (*Client)(nil)

const (
	// ClientName identifies this client to MCP servers.
	ClientName = "taskrag"

	// ClientVersion is reported during initialisation.
	ClientVersion = "0.1.0"

	// DefaultTimeout bounds each tool call.
	DefaultTimeout = 60 * time.Second

	// TokenEnv is the variable github-mcp-server reads its token from.
	TokenEnv = "GITHUB_PERSONAL_ACCESS_TOKEN"
)

// ErrNoTool is returned when the server offers no tool for an operation.
var ErrNoTool = errors.New("mcp server has no matching tool")

// Config holds configuration for the MCP client. Transport takes
// precedence over URL, and URL over Command.
type Config struct {
	// Command launches a stdio server, e.g. "github-mcp-server stdio".
	Command string

	// URL is a streamable HTTP endpoint, e.g. https://api.githubcopilot.com/mcp/.
	URL string

	// Token is passed as TokenEnv to Command or as a bearer token to URL.
	Token string

	// Timeout bounds each tool call (default: 60s).
	Timeout time.Duration

	// Transport overrides Command and URL.
	Transport mcp.Transport
}

// Client is a lazily connected MCP client session.
type Client struct {
	cfg    Config
	client *mcp.Client

	mu      sync.Mutex
	session *mcp.ClientSession
	tools   map[string]bool
}

// NewClient creates an MCP pull-request source. No connection is made
// until the first request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Transport == nil && cfg.URL == "" && strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("%w: MCP command or URL is required", domain.ErrGitHubUnavailable)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: mcp.NewClient(&mcp.Implementation{Name: ClientName, Version: ClientVersion}, nil),
	}, nil
}

// GetPullRequest returns metadata, changed files and the unified diff.
func (c *Client) GetPullRequest(ctx context.Context, ref domain.PullRequestRef) (*domain.PullRequest, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	res, err := c.call(ctx, opGet, ref)
	if err != nil {
		return nil, fmt.Errorf("get pull request: %w", err)
	}
	pr, strategy, ok := firstMatch(decodePayloads(res), pullRequestStrategies)
	if !ok {
		return nil, fmt.Errorf("get pull request: %w: unrecognised result shape", domain.ErrEmptyResponse)
	}
	logger.Debug("mcpclient: pull request metadata via %s", strategy)
	pr.Ref = ref

	// Files and diff are best effort. The review works with either.
	if res, err := c.call(ctx, opFiles, ref); err == nil {
		if files, strategy, ok := firstMatch(decodePayloads(res), fileStrategies); ok {
			logger.Debug("mcpclient: %d files via %s", len(files), strategy)
			pr.Files = files
		}
	} else {
		logger.Warn("mcpclient: files for %s unavailable: %v", ref, err)
	}

	if res, err := c.call(ctx, opDiff, ref); err == nil {
		if diff, strategy, ok := firstMatch(decodePayloads(res), diffStrategies); ok {
			logger.Debug("mcpclient: diff via %s", strategy)
			pr.Diff = diff
		}
	} else {
		logger.Warn("mcpclient: diff for %s unavailable: %v", ref, err)
	}

	return pr, nil
}

// Close ends the session and stops a stdio server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	c.tools = nil
	return err
}

// connect opens the session once and records the server's tool names.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return nil
	}

	transport, err := c.transport(ctx)
	if err != nil {
		return err
	}
	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("%w: connect to MCP server: %v", domain.ErrGitHubUnavailable, err)
	}

	tools := map[string]bool{}
	params := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("%w: list MCP tools: %v", domain.ErrGitHubUnavailable, err)
		}
		for _, t := range res.Tools {
			tools[t.Name] = true
		}
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}

	logger.Debug("mcpclient: connected, %d tools available", len(tools))
	c.session = session
	c.tools = tools
	return nil
}

func (c *Client) transport(ctx context.Context) (mcp.Transport, error) {
	switch {
	case c.cfg.Transport != nil:
		return c.cfg.Transport, nil
	case c.cfg.URL != "":
		t := &mcp.StreamableClientTransport{Endpoint: c.cfg.URL}
		if c.cfg.Token != "" {
			t.HTTPClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.cfg.Token}))
		}
		return t, nil
	default:
		fields := strings.Fields(c.cfg.Command)
		cmd := exec.Command(fields[0], fields[1:]...)
		cmd.Env = os.Environ()
		if c.cfg.Token != "" {
			cmd.Env = append(cmd.Env, TokenEnv+"="+c.cfg.Token)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	}
}

// call invokes the first tool the server offers for op, trying each
// argument shape in order.
func (c *Client) call(ctx context.Context, op operation, ref domain.PullRequestRef) (*mcp.CallToolResult, error) {
	c.mu.Lock()
	session, tools := c.session, c.tools
	c.mu.Unlock()
	if session == nil {
		return nil, fmt.Errorf("%w: not connected", domain.ErrGitHubUnavailable)
	}

	tool, ok := op.pick(tools)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTool, op.name)
	}

	return tryVariants(ctx, argumentVariants(ref, tool.method), func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		res, err := session.CallTool(callCtx, &mcp.CallToolParams{Name: tool.name, Arguments: args})
		if err != nil {
			return nil, err
		}
		if res.IsError {
			return nil, &ToolError{Tool: tool.name, Message: resultText(res)}
		}
		return res, nil
	})
}

// ToolError is an error result reported by the server.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp tool %s: %s", e.Tool, e.Message)
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
