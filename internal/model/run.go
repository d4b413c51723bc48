package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Strategy selects how candidate posts are discovered.
type Strategy string

// Discovery strategies. Browse walks the community listings
// (hot/new/rising/top), Search queries the platform's search endpoint per
// keyword, and Both unions the two.
const (
	StrategyBrowse Strategy = "browse"
	StrategySearch Strategy = "search"
	StrategyBoth   Strategy = "both"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyBrowse, StrategySearch, StrategyBoth:
		return true
	}
	return false
}

// Browse reports whether listing discovery should run.
func (s Strategy) Browse() bool { return s == StrategyBrowse || s == StrategyBoth }

// Search reports whether search discovery should run.
func (s Strategy) Search() bool { return s == StrategySearch || s == StrategyBoth }

// RunStatus is the crawl run state machine state.
type RunStatus string

// Run states. A run advances INIT → DISCOVER → WALK → FILTER → DEDUP_MERGE
// → PERSIST → DONE. BACKOFF is a sub-state entered from DISCOVER or WALK
// while sleeping out a remote rate limit. PARTIAL and FAILED are terminal:
// PARTIAL when the deadline elapsed before PERSIST completed normally (the
// accumulated batch is still persisted), FAILED when a non-isolated error
// aborted the run without persisting.
const (
	StatusInit       RunStatus = "INIT"
	StatusDiscover   RunStatus = "DISCOVER"
	StatusWalk       RunStatus = "WALK"
	StatusFilter     RunStatus = "FILTER"
	StatusDedupMerge RunStatus = "DEDUP_MERGE"
	StatusPersist    RunStatus = "PERSIST"
	StatusBackoff    RunStatus = "BACKOFF"
	StatusDone       RunStatus = "DONE"
	StatusPartial    RunStatus = "PARTIAL"
	StatusFailed     RunStatus = "FAILED"
)

// Terminal reports whether the status ends the run.
func (s RunStatus) Terminal() bool {
	return s == StatusDone || s == StatusPartial || s == StatusFailed
}

// Counters aggregates per-run work counts. Incremented concurrently during
// the walk fan-out; guard with CrawlRun methods, not direct writes.
type Counters struct {
	PostsFetched      int `json:"posts_fetched"`
	CommentsFetched   int `json:"comments_fetched"`
	PrunedByScore     int `json:"pruned_by_score"`
	PrunedByRelevance int `json:"pruned_by_relevance"`
}

// CrawlRun carries the state of one crawl: identity, request parameters,
// pagination cursors for resuming, counters, and the state machine status.
// CrawlRun and ContentRecord are the only state carried between runs.
type CrawlRun struct {
	mu sync.Mutex

	// ID uniquely identifies the run.
	ID string `json:"id"`

	// StartedAt and FinishedAt bound the run's execution.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Strategy is the requested discovery strategy.
	Strategy Strategy `json:"strategy"`

	// Sources and Keywords are the configured community and keyword lists.
	Sources  []string `json:"sources"`
	Keywords []string `json:"keywords"`

	// Cursors maps a discovery unit key ("source/sort" or
	// "source?q=keyword") to the pagination cursor reached, so a later run
	// can resume or skip already-seen pages.
	Cursors map[string]string `json:"cursors,omitempty"`

	// Counts aggregates work done during the run.
	Counts Counters `json:"counts"`

	// Status is the current state machine state.
	Status RunStatus `json:"status"`

	// ErrorsBySource records recovered per-source errors. These never
	// abort the run and are surfaced in the output batch for visibility.
	ErrorsBySource map[string]string `json:"errors_by_source,omitempty"`

	// prevStatus remembers the state BACKOFF was entered from.
	prevStatus RunStatus
}

// NewCrawlRun creates a run in the INIT state with a fresh UUID.
func NewCrawlRun(strategy Strategy, sources, keywords []string) *CrawlRun {
	return &CrawlRun{
		ID:             uuid.NewString(),
		StartedAt:      time.Now().UTC(),
		Strategy:       strategy,
		Sources:        sources,
		Keywords:       keywords,
		Cursors:        make(map[string]string),
		Status:         StatusInit,
		ErrorsBySource: make(map[string]string),
	}
}

// SetStatus transitions the run to the given state.
func (r *CrawlRun) SetStatus(s RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = s
	if s.Terminal() {
		r.FinishedAt = time.Now().UTC()
	}
}

// CurrentStatus returns the run's state.
func (r *CrawlRun) CurrentStatus() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status
}

// EnterBackoff records the BACKOFF sub-state, remembering the state it was
// entered from so LeaveBackoff can restore it.
func (r *CrawlRun) EnterBackoff() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status == StatusBackoff {
		return
	}
	r.prevStatus = r.Status
	r.Status = StatusBackoff
}

// LeaveBackoff restores the state BACKOFF was entered from.
func (r *CrawlRun) LeaveBackoff() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != StatusBackoff {
		return
	}
	r.Status = r.prevStatus
}

// RecordSourceError stores a recovered error for the given source or
// discovery unit.
func (r *CrawlRun) RecordSourceError(source string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ErrorsBySource == nil {
		r.ErrorsBySource = make(map[string]string)
	}
	r.ErrorsBySource[source] = err.Error()
}

// SetCursor records the pagination cursor reached for a discovery unit.
func (r *CrawlRun) SetCursor(key, cursor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Cursors == nil {
		r.Cursors = make(map[string]string)
	}
	r.Cursors[key] = cursor
}

// AddPostsFetched increments the fetched post counter.
func (r *CrawlRun) AddPostsFetched(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts.PostsFetched += n
}

// AddCommentsFetched increments the fetched comment counter.
func (r *CrawlRun) AddCommentsFetched(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts.CommentsFetched += n
}

// AddPrunedByScore increments the score-pruned counter.
func (r *CrawlRun) AddPrunedByScore(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts.PrunedByScore += n
}

// AddPrunedByRelevance increments the relevance-pruned counter.
func (r *CrawlRun) AddPrunedByRelevance(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts.PrunedByRelevance += n
}

// Snapshot returns a copy of the run safe for serialization.
func (r *CrawlRun) Snapshot() CrawlRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := CrawlRun{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Strategy:   r.Strategy,
		Sources:    append([]string(nil), r.Sources...),
		Keywords:   append([]string(nil), r.Keywords...),
		Counts:     r.Counts,
		Status:     r.Status,
	}
	if len(r.Cursors) > 0 {
		out.Cursors = make(map[string]string, len(r.Cursors))
		for k, v := range r.Cursors {
			out.Cursors[k] = v
		}
	}
	if len(r.ErrorsBySource) > 0 {
		out.ErrorsBySource = make(map[string]string, len(r.ErrorsBySource))
		for k, v := range r.ErrorsBySource {
			out.ErrorsBySource[k] = v
		}
	}
	return out
}
