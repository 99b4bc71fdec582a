package mcpclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// toolChoice is one way a server may expose an operation.
type toolChoice struct {
	name   string
	method string // "method" argument for consolidated tools
}

// operation lists tool choices in preference order.
type operation struct {
	name    string
	choices []toolChoice
}

var (
	opGet = operation{name: "get", choices: []toolChoice{
		{name: "pull_request_read", method: "get"},
		{name: "get_pull_request"},
	}}
	opFiles = operation{name: "files", choices: []toolChoice{
		{name: "pull_request_read", method: "get_files"},
		{name: "get_pull_request_files"},
	}}
	opDiff = operation{name: "diff", choices: []toolChoice{
		{name: "pull_request_read", method: "get_diff"},
		{name: "get_pull_request_diff"},
	}}
)

func (o operation) pick(available map[string]bool) (toolChoice, bool) {
	for _, c := range o.choices {
		if available[c.name] {
			return c, true
		}
	}
	return toolChoice{}, false
}

// pullNumberKeys are the argument names servers use for the PR number,
// in the order they are tried.
var pullNumberKeys = []string{"pullNumber", "pull_number", "number"}

// argumentVariants builds one argument map per pull number key.
func argumentVariants(ref domain.PullRequestRef, method string) []map[string]any {
	variants := make([]map[string]any, 0, len(pullNumberKeys))
	for _, key := range pullNumberKeys {
		args := map[string]any{
			"owner": ref.Owner,
			"repo":  ref.Repo,
			key:     ref.Number,
		}
		if method != "" {
			args["method"] = method
		}
		variants = append(variants, args)
	}
	return variants
}

// tryVariants calls fn with each variant until one succeeds. Context
// errors stop the sequence immediately. When every variant fails the
// errors are joined in the order they occurred.
func tryVariants[V, T any](ctx context.Context, variants []V, fn func(context.Context, V) (T, error)) (T, error) {
	var zero T
	if len(variants) == 0 {
		return zero, errors.New("no variants to try")
	}

	var errs []error
	for i, v := range variants {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := fn(ctx, v)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		errs = append(errs, fmt.Errorf("variant %d: %w", i+1, err))
	}
	return zero, errors.Join(errs...)
}
