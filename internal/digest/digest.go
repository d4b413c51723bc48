// Package digest computes stable content digests and compares them across
// runs to support incremental crawling.
//
// A digest covers the normalized (id, body, score bucket, edited) tuple of
// an item. Bodies are Unicode-normalized before hashing so platform-side
// re-encoding does not churn digests, and scores are bucketed so ordinary
// vote jitter does not either: two fetches of an unchanged item always
// produce the same digest.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/yike5460/commprobe/internal/model"
)

// scoreBucketSize groups scores so small vote movements do not count as
// content changes.
const scoreBucketSize = 10

// Compute returns the hex-encoded SHA-256 digest of the normalized
// (id, body, score bucket, edited) tuple.
func Compute(id, body string, score int, edited bool) string {
	normalized := norm.NFKC.String(strings.TrimSpace(body))
	tuple := fmt.Sprintf("%s\x00%s\x00%d\x00%t", id, normalized, bucket(score), edited)
	sum := sha256.Sum256([]byte(tuple))
	return hex.EncodeToString(sum[:])
}

// ForPost digests a post. Title and body together form the content, so a
// retitled post re-emits like an edited one.
func ForPost(p *model.Post) string {
	return Compute(p.ID, p.Title+"\n"+p.Body, p.Score, p.Edited)
}

// ForComment digests a comment.
func ForComment(c *model.CommentNode) string {
	return Compute(c.ID, c.Body, c.Score, c.Edited)
}

// bucket floors a score into its bucket. Negative scores bucket downward so
// -1 and -11 land in different buckets.
func bucket(score int) int {
	if score < 0 {
		return -(((-score) + scoreBucketSize - 1) / scoreBucketSize)
	}
	return score / scoreBucketSize
}

// Detector compares item digests against a prior run's ContentRecord and
// accumulates the record for the next run. The prior record is never
// mutated; the next record starts from a copy of it and every item seen
// overwrites its entry, so items skipped by early-stop keep their stored
// digests and later incremental runs compare correctly. Not safe for
// concurrent use; the orchestrator consults it from a single goroutine
// during FILTER.
type Detector struct {
	prior model.ContentRecord
	next  model.ContentRecord
}

// NewDetector creates a Detector over the prior run's record. An empty
// record makes every item register as new.
func NewDetector(prior model.ContentRecord) *Detector {
	return &Detector{
		prior: prior,
		next:  prior.Clone(),
	}
}

// Observe records the item's digest for the next run and reports whether
// the item is new or its digest differs from the prior record.
func (d *Detector) Observe(id, dg string) (changed bool) {
	d.next.Set(id, dg)
	previous, seen := d.prior.Digest(id)
	return !seen || previous != dg
}

// Record returns the accumulated record for end-of-run commit.
func (d *Detector) Record() model.ContentRecord {
	return d.next
}
