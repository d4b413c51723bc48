package report

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/yike5460/commprobe/internal/model"
)

// MarkdownWriter outputs batch summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the batch summary in Markdown format.
func (w *MarkdownWriter) Write(batch *model.Batch) (int, error) {
	md := markdown.NewMarkdown(w.output)

	// Header
	w.writeHeader(md, batch)

	// Status alert
	w.writeAlert(md, batch)

	// Keyword mentions
	w.writeMentions(md, batch)

	// Posts
	w.writePosts(md, batch)

	// Recovered per-source errors
	w.writeSourceErrors(md, batch)

	// Footer
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the summary header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, batch *model.Batch) {
	meta := batch.Metadata

	md.H1("Commprobe Crawl Summary")
	md.PlainText("")

	// Run info table
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + meta.RunID + "`"},
			{"Strategy", string(meta.Strategy)},
			{"Mode", meta.Mode},
			{"Started", meta.StartedAt},
			{"Finished", meta.FinishedAt},
			{"Status", w.getStatusText(meta.Status)},
			{"Posts", strconv.Itoa(len(batch.Posts))},
			{"Comments", strconv.Itoa(batch.CommentTotal())},
			{"Pruned (score)", strconv.Itoa(meta.Counts.PrunedByScore)},
			{"Pruned (relevance)", strconv.Itoa(meta.Counts.PrunedByRelevance)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on the run's terminal state.
func (w *MarkdownWriter) getStatusText(status model.RunStatus) string {
	switch status {
	case model.StatusDone:
		return "✅ Complete"
	case model.StatusPartial:
		return "⚠️ Partial (deadline reached)"
	case model.StatusFailed:
		return "❌ Failed"
	default:
		return string(status)
	}
}

// writeAlert writes an appropriate alert based on the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, batch *model.Batch) {
	meta := batch.Metadata
	switch {
	case meta.Status == model.StatusFailed:
		md.Cautionf("Run %s failed before persisting results. The batch below may be empty.", meta.RunID)
	case meta.Status == model.StatusPartial:
		md.Warningf(
			"The run deadline elapsed. %d post(s) accumulated before the cutoff were kept.",
			len(batch.Posts),
		)
	case len(meta.ErrorsBySource) > 0:
		md.Importantf(
			"%d source(s) failed and were skipped. See the recovered errors section.",
			len(meta.ErrorsBySource),
		)
	case len(batch.Posts) == 0:
		md.Note("No new or changed content was found this run.")
	default:
		md.Tip("Crawl completed cleanly and results were persisted.")
	}
	md.PlainText("")
}

// writeMentions writes the keyword mention section with a pie chart.
func (w *MarkdownWriter) writeMentions(md *markdown.Markdown, batch *model.Batch) {
	md.H2("Keyword Mentions")
	md.PlainText("")

	mentions := batch.Metadata.Mentions
	if len(mentions) == 0 {
		md.PlainText("No keyword mentions in this batch.")
		md.PlainText("")
		return
	}

	keys := sortedMentions(mentions)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, strconv.Itoa(mentions[k])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Mentions"},
		Rows:   rows,
	})

	w.writePieChart(md, keys, mentions)
}

// writePieChart writes a mermaid pie chart for mention distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, keys []string, mentions map[string]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Keyword Mention Distribution"),
		piechart.WithShowData(true),
	)

	for _, k := range keys {
		if mentions[k] > 0 {
			chart.LabelAndIntValue(k, uint64(mentions[k]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePosts writes the collected posts as a table.
func (w *MarkdownWriter) writePosts(md *markdown.Markdown, batch *model.Batch) {
	md.H2("Posts")
	md.PlainText("")

	if len(batch.Posts) == 0 {
		md.PlainText("No posts collected.")
		md.PlainText("")
		return
	}

	headers := []string{"Source", "Title", "Author", "Score", "Comments", "Keywords"}
	rows := make([][]string, len(batch.Posts))
	for i, p := range batch.Posts {
		rows[i] = []string{
			p.Source,
			truncateString(p.Title, 60),
			p.Author,
			strconv.Itoa(p.Score),
			strconv.Itoa(p.CommentTotal()),
			strings.Join(p.MatchedKeywords, ", "),
		}
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")

	// Expandable post bodies for posts that carry one
	for _, p := range batch.Posts {
		if p.Body != "" && !p.Stub {
			md.Details(p.Title, truncateString(p.Body, 500))
		}
	}
	md.PlainText("")
}

// writeSourceErrors writes recovered per-source errors, if any.
func (w *MarkdownWriter) writeSourceErrors(md *markdown.Markdown, batch *model.Batch) {
	errs := batch.Metadata.ErrorsBySource
	if len(errs) == 0 {
		return
	}

	md.H2("Recovered Errors")
	md.PlainText("")

	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, truncateString(errs[k], 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Summary generated by [commprobe](https://github.com/yike5460/commprobe)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
