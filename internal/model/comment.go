package model

import "time"

// CommentNode is one comment in a post's tree. Each node owns its replies
// exclusively: the structure is a tree, never a graph, and no node appears
// under two parents.
//
// Invariant: for every reply r of a node n, r.Depth == n.Depth+1, and Depth
// never exceeds the configured maximum (4 by default).
type CommentNode struct {
	// ID is the platform-unique comment identifier.
	ID string `json:"id"`

	// PostID is the ID of the post this comment belongs to.
	PostID string `json:"post_id"`

	// ParentID is the ID of the parent comment. Empty only for roots of
	// the post's tree (top-level comments).
	ParentID string `json:"parent_id,omitempty"`

	// Author is the comment author's account name.
	Author string `json:"author"`

	// Body is the comment text.
	Body string `json:"body"`

	// Score is the net vote score at collection time.
	Score int `json:"score"`

	// CreatedAt is the comment creation time reported by the platform.
	CreatedAt time.Time `json:"created_at"`

	// Edited reports whether the comment was edited after creation.
	Edited bool `json:"edited"`

	// ByPostAuthor reports whether the comment was written by the author
	// of the post it belongs to. Such comments are exempt from score,
	// breadth, and relevance pruning.
	ByPostAuthor bool `json:"by_post_author,omitempty"`

	// Depth is the node's depth in the tree; 0 for top-level comments.
	Depth int `json:"depth"`

	// Digest is the stable content digest over the normalized
	// (id, body, score bucket, edited) tuple.
	Digest string `json:"digest"`

	// TruncatedByDepth is set on nodes at the walk's depth limit. Their
	// replies, if any exist upstream, were not fetched.
	TruncatedByDepth bool `json:"truncated_by_depth,omitempty"`

	// SubtreeIncomplete is set when fetching one of this node's reply
	// subtrees failed after retries were exhausted. Sibling subtrees are
	// unaffected.
	SubtreeIncomplete bool `json:"subtree_incomplete,omitempty"`

	// Replies holds the node's children in fetch order.
	Replies []*CommentNode `json:"replies,omitempty"`

	// CollectedAt records when this comment was extracted.
	CollectedAt time.Time `json:"collected_at"`
}

// Size counts the node and all of its descendants.
func (c *CommentNode) Size() int {
	n := 1
	for _, r := range c.Replies {
		n += r.Size()
	}
	return n
}

// Visit calls fn for the node and every descendant, parents before children.
func (c *CommentNode) Visit(fn func(*CommentNode)) {
	fn(c)
	for _, r := range c.Replies {
		r.Visit(fn)
	}
}
