package model

import "time"

// ContentRecord maps item IDs (posts and comments alike) to the content
// digest last seen for them. It is loaded before a run, consulted during
// filtering, and committed once at end of run; the crawler never mutates a
// loaded record in place.
type ContentRecord struct {
	// Digests maps item ID to its last-seen content digest.
	Digests map[string]string `json:"digests"`

	// UpdatedAt is when the record was last committed.
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// NewContentRecord returns an empty record.
func NewContentRecord() ContentRecord {
	return ContentRecord{Digests: make(map[string]string)}
}

// Digest returns the stored digest for an item ID.
func (r ContentRecord) Digest(id string) (string, bool) {
	d, ok := r.Digests[id]
	return d, ok
}

// Set stores the digest for an item ID.
func (r *ContentRecord) Set(id, digest string) {
	if r.Digests == nil {
		r.Digests = make(map[string]string)
	}
	r.Digests[id] = digest
}

// Len returns the number of tracked items.
func (r ContentRecord) Len() int { return len(r.Digests) }

// Clone returns a deep copy of the record.
func (r ContentRecord) Clone() ContentRecord {
	out := ContentRecord{
		Digests:   make(map[string]string, len(r.Digests)),
		UpdatedAt: r.UpdatedAt,
	}
	for k, v := range r.Digests {
		out.Digests[k] = v
	}
	return out
}
