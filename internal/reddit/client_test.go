package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yike5460/commprobe/internal/ratelimit"
)

// testCreds returns valid-looking credentials for tests.
func testCreds() Credentials {
	return Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "commprobe-test/1.0",
	}
}

const listingBody = `{
	"kind": "Listing",
	"data": {
		"after": "t3_next",
		"children": [
			{"kind": "t3", "data": {
				"id": "abc123",
				"subreddit": "LawFirm",
				"title": "New demand letter automation",
				"selftext": "we considered a few vendors",
				"author": "counselor",
				"created_utc": 1767225600,
				"score": 42,
				"upvote_ratio": 0.93,
				"num_comments": 7,
				"permalink": "/r/LawFirm/comments/abc123/new_demand_letter_automation/",
				"link_flair_text": "Tech",
				"edited": false
			}},
			{"kind": "t3", "data": {
				"id": "def456",
				"subreddit": "LawFirm",
				"title": "Edited link post",
				"selftext": "",
				"author": "",
				"created_utc": 1767312000,
				"score": 3,
				"edited": 1767315600.0
			}}
		]
	}
}`

const commentsBody = `[
	{"kind": "Listing", "data": {"after": "", "children": [
		{"kind": "t3", "data": {"id": "abc123"}}
	]}},
	{"kind": "Listing", "data": {"after": "", "children": [
		{"kind": "t1", "data": {
			"id": "c1",
			"link_id": "t3_abc123",
			"parent_id": "t3_abc123",
			"author": "counselor",
			"body": "clarifying as OP",
			"score": -9,
			"created_utc": 1767225700,
			"edited": false,
			"is_submitter": true,
			"replies": {"kind": "Listing", "data": {"children": [
				{"kind": "t1", "data": {"id": "c2", "link_id": "t3_abc123", "parent_id": "t1_c1", "author": "other", "body": "thanks", "score": 4, "created_utc": 1767225800, "edited": false, "replies": ""}}
			]}}
		}},
		{"kind": "more", "data": {"count": 12}}
	]}}
]`

// newAPIServer serves a token endpoint plus the given handler for data
// requests.
func newAPIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"access_token": "tok", "expires_in": 3600}`)
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestClient wires a client against the test server.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	f := NewFetcher(
		ratelimit.NewBudget(ratelimit.WithCeiling(10000), ratelimit.WithDailyCeiling(0)),
		WithAPIDelay(0, 0),
		WithMaxRateRetries(0),
		WithMaxTransientRetries(0),
	)
	c, err := NewClient(testCreds(), f,
		WithBaseURL(srv.URL),
		WithTokenURL(srv.URL+"/api/v1/access_token"),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// TestNewClient verifies credential validation.
func TestNewClient(t *testing.T) {
	t.Parallel()

	f := NewFetcher(ratelimit.NewBudget())

	t.Run("rejects missing credentials", func(t *testing.T) {
		t.Parallel()
		_, err := NewClient(Credentials{ClientID: "id"}, f)
		if !errors.Is(err, ErrAuth) {
			t.Errorf("expected ErrAuth, got %v", err)
		}
	})

	t.Run("rejects nil fetcher", func(t *testing.T) {
		t.Parallel()
		if _, err := NewClient(testCreds(), nil); err == nil {
			t.Error("expected error for nil fetcher")
		}
	})
}

// TestClientListing verifies listing decoding, authentication headers, and
// cursor propagation.
func TestClientListing(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth, gotAfter string
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAfter = r.URL.Query().Get("after")
		fmt.Fprint(w, listingBody)
	})
	c := newTestClient(t, srv)

	page, err := c.Listing(context.Background(), "LawFirm", "hot", 25, "t3_prev")
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}

	if gotPath != "/r/LawFirm/hot" {
		t.Errorf("expected path /r/LawFirm/hot, got %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}
	if gotAfter != "t3_prev" {
		t.Errorf("expected after cursor forwarded, got %q", gotAfter)
	}
	if page.After != "t3_next" {
		t.Errorf("expected next cursor t3_next, got %q", page.After)
	}
	if len(page.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(page.Posts))
	}

	first := page.Posts[0]
	if first.ID != "abc123" || first.Source != "LawFirm" || first.Score != 42 {
		t.Errorf("unexpected first post: %+v", first)
	}
	if first.Edited {
		t.Error("expected first post unedited")
	}
	if first.URL == "" {
		t.Error("expected permalink expansion")
	}

	second := page.Posts[1]
	if !second.Edited {
		t.Error("expected epoch edited field to decode as true")
	}
	if second.Author != "[deleted]" {
		t.Errorf("expected deleted author placeholder, got %q", second.Author)
	}
}

// TestClientTopComments verifies the two-listing comments response decoding.
func TestClientTopComments(t *testing.T) {
	t.Parallel()

	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/comments/abc123" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, commentsBody)
	})
	c := newTestClient(t, srv)

	comments, err := c.TopComments(context.Background(), "abc123", 20)
	if err != nil {
		t.Fatalf("TopComments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment (more stub skipped), got %d", len(comments))
	}

	got := comments[0]
	if got.ID != "c1" || got.PostID != "abc123" {
		t.Errorf("unexpected comment identity: %+v", got)
	}
	if got.ParentID != "" {
		t.Errorf("expected top-level comment to have empty parent, got %q", got.ParentID)
	}
	if !got.BySubmitter {
		t.Error("expected is_submitter to map to BySubmitter")
	}
	if !got.HasReplies {
		t.Error("expected advertised replies to set HasReplies")
	}
	if got.Score != -9 {
		t.Errorf("expected score -9, got %d", got.Score)
	}
}

// TestClientReplies verifies per-node reply fetching through the focal
// comment response shape.
func TestClientReplies(t *testing.T) {
	t.Parallel()

	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("comment") != "c1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, commentsBody)
	})
	c := newTestClient(t, srv)

	replies, err := c.Replies(context.Background(), "abc123", "c1", 10)
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	if replies[0].ID != "c2" || replies[0].ParentID != "c1" {
		t.Errorf("unexpected reply: %+v", replies[0])
	}
}

// TestClientStatusClassification verifies the HTTP status to error taxonomy
// mapping.
func TestClientStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadGateway, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			t.Parallel()

			srv := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			c := newTestClient(t, srv)

			_, err := c.Listing(context.Background(), "LawFirm", "hot", 25, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
			}
		})
	}
}

// TestClientTokenFailure verifies rejected credentials surface ErrAuth.
func TestClientTokenFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv)

	_, err := c.Listing(context.Background(), "LawFirm", "hot", 25, "")
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth from rejected token request, got %v", err)
	}
}
