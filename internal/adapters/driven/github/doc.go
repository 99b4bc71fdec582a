// Package github implements driven.PullRequestSource over the GitHub REST
// API using go-github.
//
// # Rate Limiting
//
// A dual-strategy limiter guards every call: a token bucket
// (golang.org/x/time/rate) throttles proactively at ~1.2 req/s, and the
// X-RateLimit-* headers of each response pause requests when fewer than
// MinBuffer calls remain before the reset. Exhausted quotas surface as
// *domain.RateLimitError.
package github
