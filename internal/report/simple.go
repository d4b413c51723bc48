package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/yike5460/commprobe/internal/model"
)

// SimpleWriter outputs human-readable text summaries of a crawl batch.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no content are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the batch summary in human-readable format.
func (w *SimpleWriter) Write(batch *model.Batch) (int, error) {
	var sb strings.Builder

	// Header
	w.writeHeader(&sb, batch)

	// Summary counters
	w.writeSummary(&sb, batch)

	// Keyword mentions
	w.writeMentions(&sb, batch)

	// Posts
	w.writePosts(&sb, batch)

	// Recovered per-source errors
	w.writeSourceErrors(&sb, batch)

	// Footer
	w.writeFooter(&sb)

	// Write to output
	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the summary header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, batch *model.Batch) {
	md := batch.Metadata

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         COMMPROBE CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Run ID:     %s\n", md.RunID))
	sb.WriteString(fmt.Sprintf("Strategy:   %s\n", md.Strategy))
	sb.WriteString(fmt.Sprintf("Mode:       %s\n", md.Mode))
	if md.StartedAt != "" {
		sb.WriteString(fmt.Sprintf("Started:    %s\n", md.StartedAt))
	}
	if md.FinishedAt != "" {
		sb.WriteString(fmt.Sprintf("Finished:   %s\n", md.FinishedAt))
	}
	sb.WriteString(fmt.Sprintf("Status:     %s\n", statusText(md.Status)))

	sb.WriteString("\n")
}

// statusText returns the status line for a terminal run status.
func statusText(s model.RunStatus) string {
	switch s {
	case model.StatusDone:
		return "Complete"
	case model.StatusPartial:
		return "PARTIAL (deadline reached, accumulated results kept)"
	case model.StatusFailed:
		return "FAILED (nothing persisted)"
	default:
		return string(s)
	}
}

// writeSummary writes the run counter section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, batch *model.Batch) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RUN COUNTERS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	c := batch.Metadata.Counts
	sb.WriteString(fmt.Sprintf("  Posts fetched:       %d\n", c.PostsFetched))
	sb.WriteString(fmt.Sprintf("  Comments fetched:    %d\n", c.CommentsFetched))
	sb.WriteString(fmt.Sprintf("  Pruned by score:     %d\n", c.PrunedByScore))
	sb.WriteString(fmt.Sprintf("  Pruned by relevance: %d\n", c.PrunedByRelevance))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  OUTPUT: %d posts, %d comments\n", len(batch.Posts), batch.CommentTotal()))
	sb.WriteString("\n")
}

// writeMentions writes the keyword mention tally, highest count first.
func (w *SimpleWriter) writeMentions(sb *strings.Builder, batch *model.Batch) {
	mentions := batch.Metadata.Mentions
	if len(mentions) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("KEYWORD MENTIONS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(mentions) == 0 {
		sb.WriteString("  No keyword mentions\n")
	} else {
		for _, kw := range sortedMentions(mentions) {
			sb.WriteString(fmt.Sprintf("  %-30s %d\n", kw, mentions[kw]))
		}
	}
	sb.WriteString("\n")
}

// writePosts writes the collected posts section.
func (w *SimpleWriter) writePosts(sb *strings.Builder, batch *model.Batch) {
	if len(batch.Posts) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("POSTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(batch.Posts) == 0 {
		sb.WriteString("  No posts collected\n")
	}

	for _, p := range batch.Posts {
		sb.WriteString(fmt.Sprintf("  * [%s] %s\n", p.Source, p.Title))
		sb.WriteString(fmt.Sprintf("    Score: %d  Comments: %d  Author: %s\n",
			p.Score, p.CommentTotal(), p.Author))
		if len(p.MatchedKeywords) > 0 {
			sb.WriteString(fmt.Sprintf("    Keywords: %s\n", strings.Join(p.MatchedKeywords, ", ")))
		}
		if w.verbose && p.URL != "" {
			sb.WriteString(fmt.Sprintf("    URL: %s\n", p.URL))
		}
	}
	sb.WriteString("\n")
}

// writeSourceErrors writes recovered per-source errors, if any.
func (w *SimpleWriter) writeSourceErrors(sb *strings.Builder, batch *model.Batch) {
	errs := batch.Metadata.ErrorsBySource
	if len(errs) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RECOVERED ERRORS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  [!] %s: %s\n", k, errs[k]))
	}
	sb.WriteString("\n")
}

// writeFooter writes the summary footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Summary generated by commprobe\n")
	sb.WriteString("https://github.com/yike5460/commprobe\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// sortedMentions returns keyword keys ordered by descending count, then
// alphabetically for equal counts.
func sortedMentions(mentions map[string]int) []string {
	keys := make([]string, 0, len(mentions))
	for k := range mentions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if mentions[keys[i]] != mentions[keys[j]] {
			return mentions[keys[i]] > mentions[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
