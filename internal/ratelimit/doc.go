// Package ratelimit tracks the outbound request allowance for the remote
// platform API.
//
// The Budget type maintains a rolling per-minute window plus a soft daily
// ceiling. Every fetch path acquires the budget before issuing a request;
// it is the single shared point of contention when post subtrees are walked
// concurrently, so all methods are safe for concurrent use.
//
// The budget only counts and advises. It never sleeps: callers receive a
// wait hint when denied and decide how to wait, which keeps cancellation
// handling in one place (the retrying fetcher).
package ratelimit
