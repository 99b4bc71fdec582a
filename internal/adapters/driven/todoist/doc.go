// Package todoist implements driven.TaskManager against the Todoist REST API v2.
//
// # Rate Limiting
//
// Requests pass through a token bucket (golang.org/x/time/rate) that keeps
// the client under Todoist's 450 requests per 15 minutes. A 429 response is
// returned as *domain.RateLimitError carrying the Retry-After reset time;
// the adapter never retries on its own.
//
// Every call is a live request. Nothing is cached between calls.
package todoist
