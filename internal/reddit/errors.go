package reddit

import "errors"

// Error taxonomy for remote API failures. Callers classify errors with
// errors.Is; the concrete messages carry endpoint context via wrapping.
//
// Design decision: We use package-level sentinel errors rather than typed
// errors because the retry policy only needs the class, not structured
// fields, and errors.Is keeps call sites short.
var (
	// ErrRateLimited is returned when the remote service answered with a
	// rate-limit response (HTTP 429). The fetcher retries these with
	// exponential backoff.
	ErrRateLimited = errors.New("rate limited by remote service")

	// ErrRateLimitExceeded is returned when rate-limit backoff retries
	// were exhausted. Surfaced to the orchestrator as a per-source error.
	ErrRateLimitExceeded = errors.New("rate limit backoff attempts exhausted")

	// ErrTransient is returned for network-level failures and 5xx
	// responses that are worth a short, jittered retry.
	ErrTransient = errors.New("transient network error")

	// ErrNotFound is returned for missing resources (HTTP 404).
	// Never retried.
	ErrNotFound = errors.New("resource not found")

	// ErrAuth is returned for authorization failures (HTTP 401/403).
	// Never retried; invalid credentials abort the whole run.
	ErrAuth = errors.New("authorization failed")
)
