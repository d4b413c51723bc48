package model

import (
	"errors"
	"testing"
)

// TestStrategy verifies strategy validation and phase selection.
func TestStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		strategy Strategy
		valid    bool
		browse   bool
		search   bool
	}{
		{StrategyBrowse, true, true, false},
		{StrategySearch, true, false, true},
		{StrategyBoth, true, true, true},
		{Strategy("stream"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			t.Parallel()
			if got := tt.strategy.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.strategy.Browse(); got != tt.browse {
				t.Errorf("Browse() = %v, want %v", got, tt.browse)
			}
			if got := tt.strategy.Search(); got != tt.search {
				t.Errorf("Search() = %v, want %v", got, tt.search)
			}
		})
	}
}

// TestCrawlRunLifecycle verifies status transitions and the backoff sub-state.
func TestCrawlRunLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("starts in INIT with a run id", func(t *testing.T) {
		t.Parallel()

		run := NewCrawlRun(StrategyBoth, []string{"LawFirm"}, []string{"ai"})

		if run.CurrentStatus() != StatusInit {
			t.Errorf("expected INIT, got %s", run.CurrentStatus())
		}
		if run.ID == "" {
			t.Error("expected non-empty run id")
		}
		if run.StartedAt.IsZero() {
			t.Error("expected StartedAt to be set")
		}
	})

	t.Run("backoff restores previous state", func(t *testing.T) {
		t.Parallel()

		run := NewCrawlRun(StrategyBrowse, nil, nil)
		run.SetStatus(StatusWalk)

		run.EnterBackoff()
		if run.CurrentStatus() != StatusBackoff {
			t.Errorf("expected BACKOFF, got %s", run.CurrentStatus())
		}

		// Re-entering is a no-op, not a state stack.
		run.EnterBackoff()

		run.LeaveBackoff()
		if run.CurrentStatus() != StatusWalk {
			t.Errorf("expected WALK after leaving backoff, got %s", run.CurrentStatus())
		}

		// Leaving when not in backoff is a no-op.
		run.LeaveBackoff()
		if run.CurrentStatus() != StatusWalk {
			t.Errorf("expected WALK, got %s", run.CurrentStatus())
		}
	})

	t.Run("terminal status sets FinishedAt", func(t *testing.T) {
		t.Parallel()

		run := NewCrawlRun(StrategyBrowse, nil, nil)
		run.SetStatus(StatusDone)

		if run.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set on terminal status")
		}
		if !StatusDone.Terminal() || !StatusPartial.Terminal() || !StatusFailed.Terminal() {
			t.Error("expected DONE, PARTIAL, FAILED to be terminal")
		}
		if StatusWalk.Terminal() {
			t.Error("expected WALK to be non-terminal")
		}
	})
}

// TestCrawlRunRecording verifies counters, cursors, and error recording.
func TestCrawlRunRecording(t *testing.T) {
	t.Parallel()

	run := NewCrawlRun(StrategyBoth, []string{"LawFirm"}, []string{"ai"})

	run.AddPostsFetched(3)
	run.AddCommentsFetched(10)
	run.AddPrunedByScore(2)
	run.AddPrunedByRelevance(1)
	run.SetCursor("LawFirm/hot", "t3_abc")
	run.RecordSourceError("Lawyertalk", errors.New("listing failed"))
	run.RecordSourceError("clean", nil)

	snap := run.Snapshot()

	if snap.Counts.PostsFetched != 3 || snap.Counts.CommentsFetched != 10 {
		t.Errorf("unexpected counts: %+v", snap.Counts)
	}
	if snap.Counts.PrunedByScore != 2 || snap.Counts.PrunedByRelevance != 1 {
		t.Errorf("unexpected prune counts: %+v", snap.Counts)
	}
	if snap.Cursors["LawFirm/hot"] != "t3_abc" {
		t.Errorf("expected cursor recorded, got %v", snap.Cursors)
	}
	if snap.ErrorsBySource["Lawyertalk"] != "listing failed" {
		t.Errorf("expected source error recorded, got %v", snap.ErrorsBySource)
	}
	if _, ok := snap.ErrorsBySource["clean"]; ok {
		t.Error("nil error should not be recorded")
	}
}

// TestContentRecord verifies digest storage and cloning.
func TestContentRecord(t *testing.T) {
	t.Parallel()

	rec := NewContentRecord()
	rec.Set("p1", "d1")

	if d, ok := rec.Digest("p1"); !ok || d != "d1" {
		t.Errorf("expected (d1, true), got (%s, %v)", d, ok)
	}
	if _, ok := rec.Digest("missing"); ok {
		t.Error("expected missing id to report false")
	}

	clone := rec.Clone()
	clone.Set("p1", "d2")
	if d, _ := rec.Digest("p1"); d != "d1" {
		t.Error("clone mutation leaked into original record")
	}
	if rec.Len() != 1 {
		t.Errorf("expected len 1, got %d", rec.Len())
	}
}

// TestBatchTallyMentions verifies keyword mention counting across posts and
// nested comments.
func TestBatchTallyMentions(t *testing.T) {
	t.Parallel()

	batch := &Batch{
		Posts: []*Post{
			{
				Title: "Harvey vs Casetext comparison",
				Body:  "we also evaluated harvey",
				Comments: []*CommentNode{
					{Body: "Casetext worked for us", Replies: []*CommentNode{
						{Body: "same, casetext all the way"},
					}},
				},
			},
		},
	}

	batch.TallyMentions([]string{"Harvey", "Casetext", "Westlaw"})

	if got := batch.Metadata.Mentions["Harvey"]; got != 2 {
		t.Errorf("expected 2 Harvey mentions, got %d", got)
	}
	if got := batch.Metadata.Mentions["Casetext"]; got != 3 {
		t.Errorf("expected 3 Casetext mentions, got %d", got)
	}
	if _, ok := batch.Metadata.Mentions["Westlaw"]; ok {
		t.Error("expected zero-mention keyword to be omitted")
	}
}
