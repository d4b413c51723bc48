package walker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yike5460/commprobe/internal/digest"
	"github.com/yike5460/commprobe/internal/model"
	"github.com/yike5460/commprobe/internal/reddit"
)

const (
	// DefaultMaxDepth is the deepest reply level walked. Nodes at this
	// depth keep no children.
	DefaultMaxDepth = 4

	// DefaultMaxChildren caps non-author children kept per node.
	DefaultMaxChildren = 10

	// DefaultTopLimit is the number of top-level comments requested per
	// post.
	DefaultTopLimit = 20

	// DefaultMinScore is the score floor. Non-author comments below it
	// are pruned with their subtrees.
	DefaultMinScore = -5
)

// CommentSource fetches comments one tree level at a time.
type CommentSource interface {
	TopComments(ctx context.Context, postID string, limit int) ([]reddit.Comment, error)
	Replies(ctx context.Context, postID, commentID string, limit int) ([]reddit.Comment, error)
}

// Stats counts what one walk did.
type Stats struct {
	// Fetched is the number of comments kept in the tree.
	Fetched int

	// PrunedByScore is the number of comments dropped by the score
	// floor. Their unfetched subtrees are not counted.
	PrunedByScore int
}

// Walker builds bounded comment trees for posts.
type Walker struct {
	source      CommentSource
	maxDepth    int
	maxChildren int
	topLimit    int
	minScore    int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Walker.
type Option func(*Walker)

// WithMaxDepth sets the deepest reply level walked.
func WithMaxDepth(depth int) Option {
	return func(w *Walker) {
		if depth >= 0 {
			w.maxDepth = depth
		}
	}
}

// WithMaxChildren caps non-author children kept per node.
func WithMaxChildren(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxChildren = n
		}
	}
}

// WithTopLimit sets the number of top-level comments requested per post.
func WithTopLimit(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.topLimit = n
		}
	}
}

// WithMinScore sets the pruning score floor.
func WithMinScore(score int) Option {
	return func(w *Walker) {
		w.minScore = score
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a Walker over the given CommentSource.
func New(source CommentSource, opts ...Option) *Walker {
	w := &Walker{
		source:      source,
		maxDepth:    DefaultMaxDepth,
		maxChildren: DefaultMaxChildren,
		topLimit:    DefaultTopLimit,
		minScore:    DefaultMinScore,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk fetches the post's comment tree and attaches it to post.Comments.
// The returned error is non-nil only for authorization failures and
// context cancellation; any other branch failure flags the affected node
// and the walk continues.
func (w *Walker) Walk(ctx context.Context, post *model.Post) (Stats, error) {
	var stats Stats

	top, err := w.source.TopComments(ctx, post.ID, w.topLimit)
	if err != nil {
		return stats, fmt.Errorf("top comments of %s: %w", post.ID, err)
	}

	post.Comments, err = w.level(ctx, post, top, 0, w.topLimit, &stats)
	return stats, err
}

// level selects which fetched comments to keep at one tree level, builds
// their nodes, and descends into each kept node's replies. breadth caps
// non-author comments kept: the top-level limit at the root, the per-node
// child cap below it.
func (w *Walker) level(ctx context.Context, post *model.Post, fetched []reddit.Comment, depth, breadth int, stats *Stats) ([]*model.CommentNode, error) {
	var kept []*model.CommentNode
	nonAuthor := 0

	for _, c := range fetched {
		byAuthor := w.byPostAuthor(post, c)
		if !byAuthor {
			if c.Score < w.minScore {
				stats.PrunedByScore++
				continue
			}
			if nonAuthor >= breadth {
				continue
			}
			nonAuthor++
		}

		node := w.node(post.ID, c, depth, byAuthor)
		stats.Fetched++

		if err := w.descend(ctx, post, node, c.HasReplies, stats); err != nil {
			return kept, err
		}
		kept = append(kept, node)
	}
	return kept, nil
}

// descend fetches and attaches a node's reply level, honoring the depth
// limit and isolating branch failures.
func (w *Walker) descend(ctx context.Context, post *model.Post, node *model.CommentNode, hasReplies bool, stats *Stats) error {
	if node.Depth >= w.maxDepth {
		node.TruncatedByDepth = true
		return nil
	}
	if !hasReplies {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	replies, err := w.source.Replies(ctx, post.ID, node.ID, w.maxChildren)
	if err != nil {
		if errors.Is(err, reddit.ErrAuth) || ctx.Err() != nil {
			return fmt.Errorf("replies of %s: %w", node.ID, err)
		}
		w.logger.Warn("reply fetch failed, subtree omitted",
			"post", post.ID, "comment", node.ID, "error", err)
		node.SubtreeIncomplete = true
		return nil
	}

	node.Replies, err = w.level(ctx, post, replies, node.Depth+1, w.maxChildren, stats)
	return err
}

// node converts a fetched comment into its tree node.
func (w *Walker) node(postID string, c reddit.Comment, depth int, byAuthor bool) *model.CommentNode {
	n := &model.CommentNode{
		ID:           c.ID,
		PostID:       postID,
		ParentID:     c.ParentID,
		Author:       c.Author,
		Body:         c.Body,
		Score:        c.Score,
		CreatedAt:    c.CreatedAt,
		Edited:       c.Edited,
		ByPostAuthor: byAuthor,
		Depth:        depth,
		CollectedAt:  w.now(),
	}
	n.Digest = digest.ForComment(n)
	return n
}

// byPostAuthor reports whether the comment was written by the post's
// author. The platform's submitter flag is authoritative; author-name
// equality covers sources that omit it.
func (w *Walker) byPostAuthor(post *model.Post, c reddit.Comment) bool {
	if c.BySubmitter {
		return true
	}
	return post.Author != "" && post.Author != "[deleted]" && c.Author == post.Author
}
