package model

import (
	"sort"
	"time"
)

// Post represents a discussion post surfaced by one of the discovery
// strategies, together with its walked comment tree.
//
// A Post is a value object constructed during a single run. The only
// cross-run identity it carries is the platform-assigned ID.
type Post struct {
	// ID is the platform-unique post identifier.
	ID string `json:"id"`

	// Source is the community the post belongs to (subreddit name).
	Source string `json:"source"`

	// Title is the post title.
	Title string `json:"title"`

	// Body is the self-text body. Empty for link posts.
	Body string `json:"body,omitempty"`

	// Author is the author's account name. "[deleted]" when removed.
	Author string `json:"author"`

	// CreatedAt is the post creation time reported by the platform.
	CreatedAt time.Time `json:"created_at"`

	// Score is the net vote score at collection time.
	Score int `json:"score"`

	// UpvoteRatio is the fraction of votes that were upvotes.
	UpvoteRatio float64 `json:"upvote_ratio,omitempty"`

	// NumComments is the comment count the platform reports for the post.
	// This may exceed the number of comments actually walked.
	NumComments int `json:"num_comments"`

	// Edited reports whether the post body was edited after creation.
	Edited bool `json:"edited"`

	// URL is the canonical permalink.
	URL string `json:"url,omitempty"`

	// Flair is the link flair text, if any.
	Flair string `json:"flair,omitempty"`

	// MatchedKeywords holds the configured keywords found in the post's
	// title or body, or the query that surfaced it via search. Kept sorted.
	MatchedKeywords []string `json:"matched_keywords,omitempty"`

	// Stub marks a post excluded by relevance whose author comments were
	// preserved. A stub carries only ID, Source, Title, and Comments.
	Stub bool `json:"stub,omitempty"`

	// Comments holds the walked top-level comments (depth 0 roots).
	Comments []*CommentNode `json:"comments,omitempty"`

	// CollectedAt records when this post was extracted.
	CollectedAt time.Time `json:"collected_at"`
}

// AddKeywords unions the given keywords into MatchedKeywords,
// keeping the set sorted and free of duplicates.
func (p *Post) AddKeywords(keywords ...string) {
	seen := make(map[string]bool, len(p.MatchedKeywords)+len(keywords))
	for _, k := range p.MatchedKeywords {
		seen[k] = true
	}
	for _, k := range keywords {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		p.MatchedKeywords = append(p.MatchedKeywords, k)
	}
	sort.Strings(p.MatchedKeywords)
}

// Merge folds another discovery of the same post into p.
// Keyword sets are unioned, comments are merged by ID, and richer field
// values win ties: a non-empty body replaces an empty one, a stub never
// overrides a full post.
func (p *Post) Merge(other *Post) {
	if other == nil || other.ID != p.ID {
		return
	}

	// A full post always beats a stub.
	if p.Stub && !other.Stub {
		comments := p.Comments
		keywords := p.MatchedKeywords
		*p = *other
		p.AddKeywords(keywords...)
		p.mergeComments(comments)
		return
	}

	p.AddKeywords(other.MatchedKeywords...)
	if !other.Stub {
		if p.Body == "" && other.Body != "" {
			p.Body = other.Body
		}
		if p.Flair == "" && other.Flair != "" {
			p.Flair = other.Flair
		}
		if p.URL == "" && other.URL != "" {
			p.URL = other.URL
		}
		if other.NumComments > p.NumComments {
			p.NumComments = other.NumComments
		}
	}
	p.mergeComments(other.Comments)
}

// mergeComments appends comments whose IDs are not already present.
func (p *Post) mergeComments(comments []*CommentNode) {
	if len(comments) == 0 {
		return
	}
	seen := make(map[string]bool, len(p.Comments))
	for _, c := range p.Comments {
		seen[c.ID] = true
	}
	for _, c := range comments {
		if !seen[c.ID] {
			p.Comments = append(p.Comments, c)
			seen[c.ID] = true
		}
	}
}

// CommentTotal counts all comments in the post's tree, nested replies
// included.
func (p *Post) CommentTotal() int {
	total := 0
	for _, c := range p.Comments {
		total += c.Size()
	}
	return total
}

// AsStub returns a minimal copy of the post carrying only identity and the
// given preserved comments. Used when relevance excludes the post but the
// author-preservation policy retains the author's own comments.
func (p *Post) AsStub(preserved []*CommentNode) *Post {
	return &Post{
		ID:          p.ID,
		Source:      p.Source,
		Title:       p.Title,
		Stub:        true,
		Comments:    preserved,
		CollectedAt: p.CollectedAt,
	}
}
