package walker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yike5460/commprobe/internal/model"
	"github.com/yike5460/commprobe/internal/reddit"
)

// fakeSource replays canned comment levels and records reply fetches.
type fakeSource struct {
	top        []reddit.Comment
	topErr     error
	replies    map[string][]reddit.Comment
	replyErrs  map[string]error
	replyCalls []string
}

func (f *fakeSource) TopComments(_ context.Context, _ string, _ int) ([]reddit.Comment, error) {
	return f.top, f.topErr
}

func (f *fakeSource) Replies(_ context.Context, _, commentID string, _ int) ([]reddit.Comment, error) {
	f.replyCalls = append(f.replyCalls, commentID)
	if err := f.replyErrs[commentID]; err != nil {
		return nil, err
	}
	return f.replies[commentID], nil
}

func comment(id, parent string, score int, hasReplies bool) reddit.Comment {
	return reddit.Comment{
		ID:         id,
		PostID:     "p1",
		ParentID:   parent,
		Author:     "someone",
		Body:       "body of " + id,
		Score:      score,
		HasReplies: hasReplies,
	}
}

func testPost() *model.Post {
	return &model.Post{ID: "p1", Author: "op", Title: "t"}
}

// TestWalkDepthInvariants verifies child depth, the depth ceiling, and
// truncation flagging down a reply chain deeper than the limit.
func TestWalkDepthInvariants(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		top: []reddit.Comment{comment("c0", "", 1, true)},
		replies: map[string][]reddit.Comment{
			"c0": {comment("c1", "c0", 1, true)},
			"c1": {comment("c2", "c1", 1, true)},
			"c2": {comment("c3", "c2", 1, true)},
			"c3": {comment("c4", "c3", 1, true)},
			"c4": {comment("c5", "c4", 1, true)},
		},
	}
	w := New(src)

	post := testPost()
	if _, err := w.Walk(context.Background(), post); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	var maxSeen int
	for _, root := range post.Comments {
		root.Visit(func(n *model.CommentNode) {
			if n.Depth > maxSeen {
				maxSeen = n.Depth
			}
			for _, r := range n.Replies {
				if r.Depth != n.Depth+1 {
					t.Errorf("reply %s depth %d under parent depth %d", r.ID, r.Depth, n.Depth)
				}
			}
			if n.Depth == DefaultMaxDepth {
				if len(n.Replies) != 0 {
					t.Errorf("node %s at depth limit has replies", n.ID)
				}
				if !n.TruncatedByDepth {
					t.Errorf("node %s at depth limit not flagged truncated", n.ID)
				}
			} else if n.TruncatedByDepth {
				t.Errorf("node %s below depth limit flagged truncated", n.ID)
			}
			if n.Digest == "" {
				t.Errorf("node %s missing digest", n.ID)
			}
		})
	}
	if maxSeen != DefaultMaxDepth {
		t.Errorf("expected deepest node at %d, got %d", DefaultMaxDepth, maxSeen)
	}

	for _, called := range src.replyCalls {
		if called == "c4" {
			t.Error("replies of a depth-limit node were fetched")
		}
	}
}

// TestWalkScorePruning verifies the score floor drops a subtree without
// fetching it, while an equally scored author comment survives.
func TestWalkScorePruning(t *testing.T) {
	t.Parallel()

	downvoted := comment("bad", "", -6, true)
	authorDownvoted := comment("opclarify", "", -20, false)
	authorDownvoted.Author = "op"
	authorDownvoted.BySubmitter = true

	src := &fakeSource{
		top: []reddit.Comment{
			comment("good", "", 3, false),
			downvoted,
			authorDownvoted,
		},
		replies: map[string][]reddit.Comment{"bad": {comment("unreachable", "bad", 9, false)}},
	}
	w := New(src)

	post := testPost()
	stats, err := w.Walk(context.Background(), post)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(post.Comments) != 2 {
		t.Fatalf("expected 2 kept comments, got %d", len(post.Comments))
	}
	if post.Comments[1].ID != "opclarify" || !post.Comments[1].ByPostAuthor {
		t.Errorf("expected the author comment preserved, got %+v", post.Comments[1])
	}
	if stats.PrunedByScore != 1 {
		t.Errorf("expected 1 score prune, got %d", stats.PrunedByScore)
	}
	if stats.Fetched != 2 {
		t.Errorf("expected 2 fetched, got %d", stats.Fetched)
	}
	for _, called := range src.replyCalls {
		if called == "bad" {
			t.Error("pruned subtree was fetched")
		}
	}
}

// TestWalkBreadthCap verifies the per-node child cap with the author
// exemption: ten non-author replies kept, the author reply kept on top.
func TestWalkBreadthCap(t *testing.T) {
	t.Parallel()

	var children []reddit.Comment
	for i := 0; i < 12; i++ {
		children = append(children, comment(fmt.Sprintf("r%d", i), "c0", 12-i, false))
	}
	author := comment("opreply", "c0", 0, false)
	author.BySubmitter = true
	children = append(children, author)

	src := &fakeSource{
		top:     []reddit.Comment{comment("c0", "", 5, true)},
		replies: map[string][]reddit.Comment{"c0": children},
	}
	w := New(src)

	post := testPost()
	if _, err := w.Walk(context.Background(), post); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	replies := post.Comments[0].Replies
	if len(replies) != DefaultMaxChildren+1 {
		t.Fatalf("expected %d replies kept, got %d", DefaultMaxChildren+1, len(replies))
	}
	nonAuthor := 0
	foundAuthor := false
	for _, r := range replies {
		if r.ByPostAuthor {
			foundAuthor = true
			continue
		}
		nonAuthor++
	}
	if nonAuthor != DefaultMaxChildren {
		t.Errorf("expected %d non-author replies, got %d", DefaultMaxChildren, nonAuthor)
	}
	if !foundAuthor {
		t.Error("expected the author reply kept past the cap")
	}
}

// TestWalkSubtreeIsolation verifies one failed branch flags its parent
// while siblings complete.
func TestWalkSubtreeIsolation(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		top: []reddit.Comment{
			comment("broken", "", 5, true),
			comment("healthy", "", 4, true),
		},
		replies:   map[string][]reddit.Comment{"healthy": {comment("child", "healthy", 2, false)}},
		replyErrs: map[string]error{"broken": reddit.ErrTransient},
	}
	w := New(src)

	post := testPost()
	if _, err := w.Walk(context.Background(), post); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if !post.Comments[0].SubtreeIncomplete {
		t.Error("expected failed branch's parent flagged incomplete")
	}
	if post.Comments[1].SubtreeIncomplete {
		t.Error("expected healthy sibling unflagged")
	}
	if len(post.Comments[1].Replies) != 1 {
		t.Error("expected healthy sibling's subtree walked")
	}
}

// TestWalkHardFailures verifies authorization failures and cancellation
// abort the walk instead of being branch-isolated.
func TestWalkHardFailures(t *testing.T) {
	t.Parallel()

	t.Run("auth error propagates", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{
			top:       []reddit.Comment{comment("c0", "", 5, true)},
			replyErrs: map[string]error{"c0": reddit.ErrAuth},
		}
		post := testPost()
		if _, err := New(src).Walk(context.Background(), post); !errors.Is(err, reddit.ErrAuth) {
			t.Errorf("expected ErrAuth, got %v", err)
		}
	})

	t.Run("top-level failure propagates", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{topErr: reddit.ErrNotFound}
		post := testPost()
		if _, err := New(src).Walk(context.Background(), post); !errors.Is(err, reddit.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("cancellation stops descent", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		src := &fakeSource{top: []reddit.Comment{comment("c0", "", 5, true)}}
		post := testPost()
		if _, err := New(src).Walk(ctx, post); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestWalkSearchProfile verifies the shallow configuration used for
// search-surfaced posts walks one reply level only.
func TestWalkSearchProfile(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		top: []reddit.Comment{comment("c0", "", 5, true)},
		replies: map[string][]reddit.Comment{
			"c0": {comment("c1", "c0", 3, true)},
			"c1": {comment("c2", "c1", 2, false)},
		},
	}
	w := New(src, WithMaxDepth(1), WithTopLimit(10))

	post := testPost()
	if _, err := w.Walk(context.Background(), post); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	c1 := post.Comments[0].Replies[0]
	if len(c1.Replies) != 0 || !c1.TruncatedByDepth {
		t.Errorf("expected depth-1 node truncated, got %+v", c1)
	}
}
