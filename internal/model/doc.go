// Package model defines the core data structures used throughout CommProbe.
//
// This package contains the following main types:
//   - Post: A discussion post with its nested comment tree
//   - CommentNode: One comment in a post's tree, owning its replies
//   - CrawlRun: State and counters for a single crawl run
//   - ContentRecord: Per-item content digests carried between runs
//   - Batch: The normalized output handed to downstream collaborators
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (discovery, walker, crawler, report) need to
// use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for batch output and
// database storage.
package model
