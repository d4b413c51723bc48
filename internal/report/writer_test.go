package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/yike5460/commprobe/internal/model"
)

// sampleBatch builds a batch with two posts, nested comments, mentions, and
// one recovered source error.
func sampleBatch() *model.Batch {
	return &model.Batch{
		Posts: []*model.Post{
			{
				ID:     "p1",
				Source: "LawFirm",
				Title:  "Supio rollout experience",
				Body:   "We moved demand letter drafting to Supio last quarter.",
				Author: "associate7",
				Score:  42,
				URL:    "https://example.com/p1",
				MatchedKeywords: []string{"Supio"},
				Comments: []*model.CommentNode{
					{
						ID:     "c1",
						PostID: "p1",
						Body:   "Supio handled the medical chronology well.",
						Score:  10,
						Replies: []*model.CommentNode{
							{ID: "c2", PostID: "p1", Body: "agreed", Score: 3},
						},
					},
				},
			},
			{
				ID:              "p2",
				Source:          "paralegal",
				Title:           "EvenUp vs manual drafting",
				Author:          "parabot",
				Score:           7,
				MatchedKeywords: []string{"EvenUp"},
			},
		},
		Metadata: model.RunMetadata{
			RunID:    "run-123",
			Mode:     "full",
			Strategy: model.StrategyBoth,
			Status:   model.StatusDone,
			Counts: model.Counters{
				PostsFetched:      5,
				CommentsFetched:   12,
				PrunedByScore:     2,
				PrunedByRelevance: 3,
			},
			ErrorsBySource: map[string]string{
				"legaltech/hot": "listing legaltech/hot: not found",
			},
			Mentions: map[string]int{"Supio": 3, "EvenUp": 1},
		},
	}
}

// TestJSONWriter verifies JSON output round trips and honors indentation.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output parses back", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		n, err := w.Write(sampleBatch())
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		var decoded model.Batch
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded.Posts) != 2 {
			t.Errorf("expected 2 posts, got %d", len(decoded.Posts))
		}
		if decoded.Metadata.RunID != "run-123" {
			t.Errorf("unexpected run id %q", decoded.Metadata.RunID)
		}
		if decoded.Posts[0].Comments[0].Replies[0].ID != "c2" {
			t.Error("expected nested reply to survive the round trip")
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.Write(sampleBatch()); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented output")
		}
	})

	t.Run("full writer wraps with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewFullJSONWriter(&buf, "1.2.3")

		if _, err := w.Write(sampleBatch()); err != nil {
			t.Fatalf("Write: %v", err)
		}

		var wrapped JSONBatch
		if err := json.Unmarshal(buf.Bytes(), &wrapped); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if wrapped.Version != "1.2.3" {
			t.Errorf("expected version 1.2.3, got %q", wrapped.Version)
		}
		if wrapped.Batch == nil || len(wrapped.Batch.Posts) != 2 {
			t.Error("expected wrapped batch with posts")
		}
	})
}

// TestSimpleWriter verifies the human-readable summary sections.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("all sections present", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(sampleBatch()); err != nil {
			t.Fatalf("Write: %v", err)
		}
		out := buf.String()

		for _, want := range []string{
			"COMMPROBE CRAWL SUMMARY",
			"run-123",
			"Strategy:   both",
			"Status:     Complete",
			"RUN COUNTERS",
			"Posts fetched:       5",
			"OUTPUT: 2 posts, 2 comments",
			"KEYWORD MENTIONS",
			"Supio",
			"POSTS",
			"[LawFirm] Supio rollout experience",
			"RECOVERED ERRORS",
			"legaltech/hot",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("mentions sorted by count", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(sampleBatch()); err != nil {
			t.Fatalf("Write: %v", err)
		}
		out := buf.String()
		if strings.Index(out, "Supio ") > strings.Index(out, "EvenUp") {
			t.Error("expected the most-mentioned keyword first")
		}
	})

	t.Run("verbose shows url", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.Write(sampleBatch()); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !strings.Contains(buf.String(), "https://example.com/p1") {
			t.Error("expected verbose output to include post URL")
		}
	})

	t.Run("partial status labelled", func(t *testing.T) {
		t.Parallel()

		batch := sampleBatch()
		batch.Metadata.Status = model.StatusPartial

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(batch); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !strings.Contains(buf.String(), "PARTIAL (deadline reached") {
			t.Error("expected partial status line")
		}
	})

	t.Run("empty sections hidden by default", func(t *testing.T) {
		t.Parallel()

		batch := &model.Batch{Metadata: model.RunMetadata{
			RunID: "run-empty", Mode: "full",
			Strategy: model.StrategyBrowse, Status: model.StatusDone,
		}}

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(batch); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if strings.Contains(buf.String(), "KEYWORD MENTIONS") {
			t.Error("expected empty mentions section to be hidden")
		}

		buf.Reset()
		w = NewSimpleWriter(&buf, WithShowEmpty(true))
		if _, err := w.Write(batch); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !strings.Contains(buf.String(), "No keyword mentions") {
			t.Error("expected shown empty mentions section")
		}
	})
}

// TestMarkdownWriter verifies markdown structure and alert selection.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("tables and chart present", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(sampleBatch()); err != nil {
			t.Fatalf("Write: %v", err)
		}
		out := buf.String()

		for _, want := range []string{
			"# Commprobe Crawl Summary",
			"`run-123`",
			"## Keyword Mentions",
			"mermaid",
			"## Posts",
			"Supio rollout experience",
			"## Recovered Errors",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("failed run gets caution alert", func(t *testing.T) {
		t.Parallel()

		batch := sampleBatch()
		batch.Metadata.Status = model.StatusFailed

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(batch); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !strings.Contains(buf.String(), "[!CAUTION]") {
			t.Error("expected caution alert for failed run")
		}
	})

	t.Run("partial run gets warning alert", func(t *testing.T) {
		t.Parallel()

		batch := sampleBatch()
		batch.Metadata.Status = model.StatusPartial

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(batch); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Error("expected warning alert for partial run")
		}
	})
}

// TestMultiWriter verifies fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var jsonBuf, textBuf bytes.Buffer
	mw := NewMultiWriter(
		NewJSONWriter(&jsonBuf),
		NewSimpleWriter(&textBuf),
	)

	n, err := mw.Write(sampleBatch())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != jsonBuf.Len()+textBuf.Len() {
		t.Errorf("expected total %d bytes, got %d", jsonBuf.Len()+textBuf.Len(), n)
	}
	if jsonBuf.Len() == 0 || textBuf.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}

// TestTruncateString verifies ellipsis truncation.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
