// Package report provides output formatting for crawl batches.
//
// This package implements writers for different output formats:
//   - JSON format for tool integration (the canonical batch document)
//   - Simple human-readable text format for terminal display
//   - Markdown format for documentation and sharing
//
// Design decision: We use a Writer interface pattern to allow different
// output formats to be used interchangeably. A MultiWriter combines a
// terminal summary with a file destination in one call.
package report
