// Package discovery surfaces candidate posts for a crawl run.
//
// Two strategies exist: listing discovery enumerates posts from a
// community's sort-order listings (hot, new, rising, top), and search
// discovery enumerates posts matching configured keyword queries. Both
// produce raw candidates only; relevance filtering, deduplication, and
// change detection belong to the orchestrator.
//
// A failure on one source or keyword never aborts discovery. It is
// recorded per source and the remaining sources proceed, so a single
// private or deleted community costs only its own results.
package discovery
