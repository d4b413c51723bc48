package relevance

import (
	"reflect"
	"testing"

	"github.com/yike5460/commprobe/internal/model"
)

// TestFilterMatch verifies case-insensitive substring matching.
func TestFilterMatch(t *testing.T) {
	t.Parallel()

	f := New([]string{"demand letter", "Harvey", ""})

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"exact phrase", "New demand letter automation", []string{"demand letter"}},
		{"case insensitive", "HARVEY vs casetext", []string{"Harvey"}},
		{"both keywords", "harvey drafted the Demand Letter", []string{"demand letter", "Harvey"}},
		{"no match", "billing software question", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := f.Match(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

// TestFilterApplyRelevant verifies a matching post passes through with its
// keyword set updated (title match on "demand letter").
func TestFilterApplyRelevant(t *testing.T) {
	t.Parallel()

	f := New([]string{"demand letter"})
	p := &model.Post{ID: "p1", Title: "New demand letter automation"}

	out, keep := f.Apply(p)
	if !keep {
		t.Fatal("expected relevant post to be kept")
	}
	if out != p {
		t.Error("expected the post itself to be returned")
	}
	if want := []string{"demand letter"}; !reflect.DeepEqual(out.MatchedKeywords, want) {
		t.Errorf("expected matched keywords %v, got %v", want, out.MatchedKeywords)
	}
}

// TestFilterApplyAuthorPreservation verifies an irrelevant post with an
// author comment is reduced to a stub carrying that comment.
func TestFilterApplyAuthorPreservation(t *testing.T) {
	t.Parallel()

	post := func() *model.Post {
		return &model.Post{
			ID:     "p1",
			Title:  "weekly billing thread",
			Body:   "nothing matching here",
			Author: "u1",
			Comments: []*model.CommentNode{
				{ID: "c1", Author: "someone", Body: "offtopic", Replies: []*model.CommentNode{
					{ID: "c2", Author: "u1", Body: "author clarification", ByPostAuthor: true},
				}},
				{ID: "c3", Author: "u1", Body: "author top-level", ByPostAuthor: true},
			},
		}
	}

	t.Run("enabled: stub retains author comments", func(t *testing.T) {
		t.Parallel()

		f := New([]string{"demand letter"})
		out, keep := f.Apply(post())
		if !keep {
			t.Fatal("expected stub to be kept")
		}
		if !out.Stub {
			t.Error("expected a stub post")
		}
		if out.ID != "p1" || out.Title != "weekly billing thread" {
			t.Error("expected stub to keep id and title")
		}
		if len(out.Comments) != 2 {
			t.Fatalf("expected 2 preserved author comments, got %d", len(out.Comments))
		}
		for _, c := range out.Comments {
			if !c.ByPostAuthor {
				t.Errorf("preserved comment %s is not by the post author", c.ID)
			}
		}
	})

	t.Run("disabled: post dropped entirely", func(t *testing.T) {
		t.Parallel()

		f := New([]string{"demand letter"}, WithAuthorPreservation(false))
		out, keep := f.Apply(post())
		if keep || out != nil {
			t.Error("expected post to be dropped with preservation disabled")
		}
	})

	t.Run("no author comments: post dropped", func(t *testing.T) {
		t.Parallel()

		f := New([]string{"demand letter"})
		p := &model.Post{ID: "p2", Title: "irrelevant", Comments: []*model.CommentNode{
			{ID: "c1", Author: "someone", Body: "offtopic"},
		}}
		if _, keep := f.Apply(p); keep {
			t.Error("expected irrelevant post without author comments to be dropped")
		}
	})
}

// TestFilterApplySearchTagged verifies a post tagged by the query that
// surfaced it is kept even when the literal keyword is absent.
func TestFilterApplySearchTagged(t *testing.T) {
	t.Parallel()

	f := New([]string{"demand letter"})
	p := &model.Post{ID: "p1", Title: "vendor comparison thread",
		MatchedKeywords: []string{"demand letter"}}

	out, keep := f.Apply(p)
	if !keep || out != p {
		t.Error("expected search-tagged post to be kept")
	}
}

// TestIsRelevant verifies the title+body relevance check.
func TestIsRelevant(t *testing.T) {
	t.Parallel()

	f := New([]string{"Supio"})

	if !f.IsRelevant(&model.Post{Title: "considering supio", Body: ""}) {
		t.Error("expected title match")
	}
	if !f.IsRelevant(&model.Post{Title: "tool advice", Body: "we use Supio daily"}) {
		t.Error("expected body match")
	}
	if f.IsRelevant(&model.Post{Title: "tool advice", Body: "nothing here"}) {
		t.Error("expected no match")
	}
}
