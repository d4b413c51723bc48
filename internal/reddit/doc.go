// Package reddit provides a read-only client for the Reddit data API.
//
// # Architecture
//
//   - Client: authenticated HTTP access to the listing, search, and comment
//     endpoints, returning normalized model types
//   - Fetcher: pacing and retry wrapper that every request passes through
//   - Error taxonomy: sentinel errors classifying remote failures
//
// The client authenticates with the application-only OAuth2 grant
// (client credentials) and operates read-only, which is sufficient for
// crawling public communities and grants the standard authenticated rate
// allowance.
//
// # Pacing
//
// All requests flow through a Fetcher, which acquires the shared rate
// budget before each call, backs off exponentially on remote rate-limit
// responses, retries transient network failures with short jittered
// delays, and sleeps a small randomized delay after every success to stay
// under the provider's burst tolerance. Authorization and not-found
// failures are never retried.
package reddit
