// Package mcpclient implements driven.PullRequestSource by calling a GitHub
// MCP server (github-mcp-server or the reference server-github) through the
// MCP go-sdk client.
//
// # Server differences
//
// Servers disagree on tool names and argument keys. The client discovers the
// available tools once per session and, for each operation, tries argument
// shapes in a fixed order (pullNumber, pull_number, number) through one retry
// helper, stopping at the first success.
//
// Result payloads are read with an ordered list of extraction strategies.
// Each strategy is total: it reports a miss instead of failing, and the first
// hit wins. Some servers return a JSON document encoded as a string inside a
// {"text": "..."} envelope; that double-encoded tool result is unwrapped
// before the strategies run. Servers that return plain JSON never take that
// path.
package mcpclient
