package model

import "strings"

// RunMetadata summarizes a finished run for the output batch.
type RunMetadata struct {
	// RunID is the UUID of the run that produced the batch.
	RunID string `json:"run_id"`

	// Mode is "incremental" or "full".
	Mode string `json:"mode"`

	// Strategy is the discovery strategy the run used.
	Strategy Strategy `json:"strategy"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`

	// Status is the terminal run status (DONE, PARTIAL, FAILED).
	Status RunStatus `json:"status"`

	// Counts aggregates work done during the run.
	Counts Counters `json:"counts"`

	// ErrorsBySource records recovered per-source errors. Never silently
	// dropped; an empty map means the run was clean.
	ErrorsBySource map[string]string `json:"errors_by_source,omitempty"`

	// Mentions tallies configured keyword occurrences across the batch's
	// posts and nested comments.
	Mentions map[string]int `json:"mentions,omitempty"`
}

// Batch is the normalized output of one crawl run: the merged, deduplicated
// posts with nested comments, plus run metadata. Downstream collaborators
// treat it as an opaque document.
type Batch struct {
	Posts    []*Post     `json:"posts"`
	Metadata RunMetadata `json:"run_metadata"`
}

// CommentTotal counts every comment in the batch, nested replies included.
func (b *Batch) CommentTotal() int {
	total := 0
	for _, p := range b.Posts {
		total += p.CommentTotal()
	}
	return total
}

// TallyMentions counts case-insensitive occurrences of each keyword across
// post titles, bodies, and all nested comment bodies, and stores the result
// in the batch metadata. Keywords with zero mentions are omitted.
func (b *Batch) TallyMentions(keywords []string) {
	counts := make(map[string]int, len(keywords))
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}

	tally := func(text string) {
		text = strings.ToLower(text)
		for i, k := range lowered {
			if k == "" {
				continue
			}
			counts[keywords[i]] += strings.Count(text, k)
		}
	}

	for _, p := range b.Posts {
		tally(p.Title + " " + p.Body)
		for _, c := range p.Comments {
			c.Visit(func(n *CommentNode) { tally(n.Body) })
		}
	}

	for k, n := range counts {
		if n == 0 {
			delete(counts, k)
		}
	}
	b.Metadata.Mentions = counts
}
