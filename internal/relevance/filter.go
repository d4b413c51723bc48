// Package relevance decides whether crawled posts belong in the output.
//
// Relevance gates posts; the author-preservation policy gates comments
// independently. An irrelevant post is normally dropped with its whole
// tree, but when author preservation is enabled, comments written by the
// post's own author survive attached to a minimal stub of the post so
// authorial context is never silently lost.
package relevance

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/yike5460/commprobe/internal/model"
)

// Filter matches configured keywords against post content. Matching is a
// case-insensitive substring test using Unicode case folding, so keywords
// hit regardless of how the platform or the author cased them.
type Filter struct {
	keywords []string // original casing, for reporting
	folded   []string // case-folded, for matching
	caser    cases.Caser

	// preserveAuthor enables the author-preservation stub for excluded
	// posts.
	preserveAuthor bool
}

// Option configures a Filter.
type Option func(*Filter)

// WithAuthorPreservation toggles the author-preservation policy.
// Enabled by default.
func WithAuthorPreservation(enabled bool) Option {
	return func(f *Filter) {
		f.preserveAuthor = enabled
	}
}

// New creates a Filter over the given keywords. Empty keywords are dropped.
func New(keywords []string, opts ...Option) *Filter {
	f := &Filter{
		caser:          cases.Fold(),
		preserveAuthor: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	for _, k := range keywords {
		if k == "" {
			continue
		}
		f.keywords = append(f.keywords, k)
		f.folded = append(f.folded, f.caser.String(k))
	}
	return f
}

// Match returns the keywords found in text, in configuration order.
func (f *Filter) Match(text string) []string {
	folded := f.caser.String(text)
	var matched []string
	for i, k := range f.folded {
		if strings.Contains(folded, k) {
			matched = append(matched, f.keywords[i])
		}
	}
	return matched
}

// IsRelevant reports whether any keyword appears in the post's title or
// body.
func (f *Filter) IsRelevant(p *model.Post) bool {
	return len(f.Match(p.Title+" "+p.Body)) > 0
}

// Apply decides a post's fate. The returned post is the input (with its
// matched-keyword set updated) when relevant, an author-preservation stub
// when irrelevant but carrying comments by the post's author, or nil when
// the post should be dropped entirely. keep reports whether anything
// survived.
func (f *Filter) Apply(p *model.Post) (out *model.Post, keep bool) {
	if matched := f.Match(p.Title + " " + p.Body); len(matched) > 0 {
		p.AddKeywords(matched...)
		return p, true
	}

	// A post already tagged with keywords was surfaced by a search query;
	// the platform matched it even if the literal text did not.
	if len(p.MatchedKeywords) > 0 {
		return p, true
	}

	if !f.preserveAuthor {
		return nil, false
	}

	preserved := authorComments(p.Comments)
	if len(preserved) == 0 {
		return nil, false
	}
	return p.AsStub(preserved), true
}

// authorComments collects top-level subtrees rooted at comments written by
// the post's author. A non-author comment with an author reply below it is
// not preserved; the policy keeps the author's own words, not their
// surroundings, so nested author comments are lifted out of their context.
func authorComments(comments []*model.CommentNode) []*model.CommentNode {
	var preserved []*model.CommentNode
	for _, c := range comments {
		if c.ByPostAuthor {
			preserved = append(preserved, c)
			continue
		}
		preserved = append(preserved, authorComments(c.Replies)...)
	}
	return preserved
}
