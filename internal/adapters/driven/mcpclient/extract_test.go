package mcpclient

import (
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapDoubleEncoded(t *testing.T) {
	want := map[string]any{"title": "x"}

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "plain object string", in: `{"title":"x"}`, want: want},
		{name: "string inside envelope", in: `{"type":"text","text":"{\"title\":\"x\"}"}`, want: want},
		{name: "envelope array", in: `[{"type":"text","text":"{\"title\":\"x\"}"}]`, want: want},
		{name: "json string literal", in: `"{\"title\":\"x\"}"`, want: want},
		{name: "raw text kept", in: "diff --git a b", want: "diff --git a b"},
		{name: "object with extra keys kept", in: map[string]any{"text": "hi", "title": "x"}, want: map[string]any{"text": "hi", "title": "x"}},
		{name: "multi element array kept", in: []any{1.0, 2.0}, want: []any{1.0, 2.0}},
		{name: "malformed json kept", in: `{"title":`, want: `{"title":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unwrapDoubleEncoded(tt.in))
		})
	}
}

func TestPullRequestStrategies(t *testing.T) {
	tests := []struct {
		name     string
		payload  any
		strategy string
		title    string
		author   string
		state    string
	}{
		{
			name:     "top level",
			payload:  map[string]any{"title": "A", "user": map[string]any{"login": "dev"}, "state": "open"},
			strategy: "object", title: "A", author: "dev", state: "open",
		},
		{
			name:     "wrapped",
			payload:  map[string]any{"pullRequest": map[string]any{"title": "B", "author": map[string]any{"login": "gql"}, "baseRefName": "main"}},
			strategy: "wrapped object", title: "B", author: "gql",
		},
		{
			name:     "array",
			payload:  []any{map[string]any{"title": "C", "merged": true, "state": "closed"}},
			strategy: "first element", title: "C", state: "merged",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, strategy, ok := firstMatch([]any{tt.payload}, pullRequestStrategies)
			require.True(t, ok)
			assert.Equal(t, tt.strategy, strategy)
			assert.Equal(t, tt.title, pr.Title)
			assert.Equal(t, tt.author, pr.Author)
			assert.Equal(t, tt.state, pr.State)
		})
	}

	_, _, ok := firstMatch([]any{"text", map[string]any{"id": 1.0}, []any{}}, pullRequestStrategies)
	assert.False(t, ok, "strategies miss without failing")
}

func TestFileStrategies(t *testing.T) {
	files, strategy, ok := firstMatch([]any{
		map[string]any{"items": []any{map[string]any{"path": "a.go", "additions": 2.0}}},
	}, fileStrategies)
	require.True(t, ok)
	assert.Equal(t, "files field", strategy)
	assert.Equal(t, "a.go", files[0].Filename)
	assert.Equal(t, 2, files[0].Additions)

	_, _, ok = firstMatch([]any{[]any{map[string]any{"sha": "x"}}}, fileStrategies)
	assert.False(t, ok)
}

func TestDiffStrategies(t *testing.T) {
	diff, strategy, ok := firstMatch([]any{"no diff here", "--- a/x\n+++ b/x\n@@ -1 +1 @@\n"}, diffStrategies)
	require.True(t, ok)
	assert.Equal(t, "raw diff", strategy)
	assert.Contains(t, diff, "+++ b/x")

	_, _, ok = firstMatch([]any{map[string]any{"diff": "nothing"}}, diffStrategies)
	assert.False(t, ok)
}

func TestDecodePayloads(t *testing.T) {
	res := &mcp.CallToolResult{
		StructuredContent: map[string]any{"title": "S"},
		Content: []mcp.Content{
			&mcp.TextContent{Text: `{"title":"T"}`},
			&mcp.TextContent{Text: "plain"},
		},
	}
	payloads := decodePayloads(res)
	require.Len(t, payloads, 3)
	assert.Equal(t, map[string]any{"title": "S"}, payloads[0])
	assert.Equal(t, map[string]any{"title": "T"}, payloads[1])
	assert.Equal(t, "plain", payloads[2])
}
