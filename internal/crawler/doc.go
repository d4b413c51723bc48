// Package crawler drives a complete crawl run.
//
// # Architecture
//
// The Crawler wires discovery, the comment tree walker, relevance
// filtering, change detection, and persistence into the run state machine
// INIT, DISCOVER, WALK, FILTER, DEDUP_MERGE, PERSIST, DONE. A BACKOFF
// sub-state overlays DISCOVER and WALK while the fetcher sleeps out a
// remote rate limit.
//
// Terminal states besides DONE:
//
//   - PARTIAL: the invoker's deadline elapsed mid-run. The local steps
//     (filter, merge, persist) still run over whatever was fetched, so an
//     interrupted run produces a valid, persisted batch.
//   - FAILED: a non-isolated error (bad credentials, storage failure)
//     aborted the run. Nothing is persisted.
//
// Design decision: the Crawler builds discovery and walker instances per
// run rather than receiving them, because incremental wiring (the
// early-stop hook, the change detector) depends on the prior run's
// content record, which is only loaded once the run starts.
package crawler
