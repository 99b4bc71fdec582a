package mcpclient

import (
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// maxUnwrap bounds nested decoding of double-encoded results.
const maxUnwrap = 5

// strategy extracts a T from a decoded payload, reporting false on a miss.
type strategy[T any] struct {
	name    string
	extract func(v any) (T, bool)
}

// firstMatch runs the strategies over each payload in order and returns the
// first hit with the name of the strategy that produced it.
func firstMatch[T any](payloads []any, strategies []strategy[T]) (T, string, bool) {
	for _, p := range payloads {
		for _, s := range strategies {
			if out, ok := s.extract(p); ok {
				return out, s.name, true
			}
		}
	}
	var zero T
	return zero, "", false
}

// decodePayloads returns the candidate payloads of a tool result:
// structured content first, then each text block decoded as JSON when it
// parses and kept as a raw string when it does not.
func decodePayloads(res *mcp.CallToolResult) []any {
	var out []any
	if res.StructuredContent != nil {
		out = append(out, unwrapDoubleEncoded(normalise(res.StructuredContent)))
	}
	for _, content := range res.Content {
		text, ok := content.(*mcp.TextContent)
		if !ok {
			continue
		}
		out = append(out, unwrapDoubleEncoded(text.Text))
	}
	return out
}

// normalise round-trips typed values into the generic JSON model.
func normalise(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// unwrapDoubleEncoded peels JSON documents that were encoded as strings,
// optionally inside a {"text": "..."} envelope or a one-element array of
// such envelopes. Values that are not double-encoded are returned as is.
func unwrapDoubleEncoded(v any) any {
	for range maxUnwrap {
		switch t := v.(type) {
		case string:
			parsed, ok := parseJSON(t)
			if !ok {
				return t
			}
			v = parsed
		case map[string]any:
			text, ok := t["text"].(string)
			if !ok || !isEnvelope(t) {
				return t
			}
			v = text
		case []any:
			if len(t) != 1 {
				return t
			}
			m, ok := t[0].(map[string]any)
			if !ok || !isEnvelope(m) {
				return t
			}
			v = m
		default:
			return v
		}
	}
	return v
}

// isEnvelope reports whether m only carries text content.
func isEnvelope(m map[string]any) bool {
	if _, ok := m["text"].(string); !ok {
		return false
	}
	for k := range m {
		if k != "text" && k != "type" {
			return false
		}
	}
	return true
}

func parseJSON(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[' && s[0] != '"') {
		return nil, false
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}

var pullRequestStrategies = []strategy[*domain.PullRequest]{
	{name: "object", extract: func(v any) (*domain.PullRequest, bool) {
		m, ok := v.(map[string]any)
		if !ok || str(m, "title") == "" {
			return nil, false
		}
		return pullRequestFromMap(m), true
	}},
	{name: "wrapped object", extract: func(v any) (*domain.PullRequest, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		for _, key := range []string{"pull_request", "pullRequest", "data", "result"} {
			if inner, ok := m[key].(map[string]any); ok && str(inner, "title") != "" {
				return pullRequestFromMap(inner), true
			}
		}
		return nil, false
	}},
	{name: "first element", extract: func(v any) (*domain.PullRequest, bool) {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			return nil, false
		}
		m, ok := arr[0].(map[string]any)
		if !ok || str(m, "title") == "" {
			return nil, false
		}
		return pullRequestFromMap(m), true
	}},
}

func pullRequestFromMap(m map[string]any) *domain.PullRequest {
	pr := &domain.PullRequest{
		Title:      str(m, "title"),
		Body:       str(m, "body"),
		State:      str(m, "state"),
		URL:        str(m, "html_url", "url"),
		Author:     nestedStr(m, "user", "login"),
		BaseBranch: nestedStr(m, "base", "ref"),
		HeadBranch: nestedStr(m, "head", "ref"),
	}
	if pr.Author == "" {
		pr.Author = str(m, "author")
		if pr.Author == "" {
			pr.Author = nestedStr(m, "author", "login")
		}
	}
	if pr.BaseBranch == "" {
		pr.BaseBranch = str(m, "baseRefName", "base")
	}
	if pr.HeadBranch == "" {
		pr.HeadBranch = str(m, "headRefName", "head")
	}
	if merged, _ := m["merged"].(bool); merged {
		pr.State = "merged"
	}
	return pr
}

var fileStrategies = []strategy[[]domain.PullRequestFile]{
	{name: "file array", extract: func(v any) ([]domain.PullRequestFile, bool) {
		return filesFromArray(v)
	}},
	{name: "files field", extract: func(v any) ([]domain.PullRequestFile, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		for _, key := range []string{"files", "data", "items"} {
			if files, ok := filesFromArray(m[key]); ok {
				return files, true
			}
		}
		return nil, false
	}},
}

func filesFromArray(v any) ([]domain.PullRequestFile, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	files := make([]domain.PullRequestFile, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		name := str(m, "filename", "path")
		if name == "" {
			return nil, false
		}
		files = append(files, domain.PullRequestFile{
			Filename:  name,
			Status:    str(m, "status"),
			Additions: num(m, "additions"),
			Deletions: num(m, "deletions"),
			Patch:     str(m, "patch"),
		})
	}
	return files, true
}

var diffStrategies = []strategy[string]{
	{name: "raw diff", extract: func(v any) (string, bool) {
		s, ok := v.(string)
		if !ok || !looksLikeDiff(s) {
			return "", false
		}
		return s, true
	}},
	{name: "diff field", extract: func(v any) (string, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		s := str(m, "diff", "patch")
		return s, looksLikeDiff(s)
	}},
}

func looksLikeDiff(s string) bool {
	return strings.HasPrefix(s, "diff --git") ||
		strings.HasPrefix(s, "--- ") ||
		strings.Contains(s, "\ndiff --git") ||
		strings.Contains(s, "\n@@ ")
}

// str returns the first non-empty string value among keys.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func nestedStr(m map[string]any, outer, inner string) string {
	if sub, ok := m[outer].(map[string]any); ok {
		return str(sub, inner)
	}
	return ""
}

func num(m map[string]any, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}
