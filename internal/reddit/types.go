package reddit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/yike5460/commprobe/internal/model"
)

// PostPage is one page of posts from a listing or search endpoint.
// After is the pagination cursor for the next page; empty means the
// listing is exhausted.
type PostPage struct {
	Posts []model.Post
	After string
}

// Comment is a single comment as returned by the platform. Replies are not
// materialized here; the walker fetches them per node so that a child is
// never fetched before its parent.
type Comment struct {
	ID          string
	PostID      string
	ParentID    string // empty for top-level comments
	Author      string
	Body        string
	Score       int
	CreatedAt   time.Time
	Edited      bool
	BySubmitter bool

	// HasReplies reports that the platform advertises further replies
	// under this comment, whether or not they are fetched.
	HasReplies bool
}

// thing is the platform's polymorphic wire envelope.
// Kinds: "Listing", "t1" (comment), "t3" (post), "more" (collapsed stub).
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listingData is the payload of a "Listing" thing.
type listingData struct {
	After    string  `json:"after"`
	Children []thing `json:"children"`
}

// editedFlag decodes the platform's "edited" field, which is false for
// unedited content and an epoch timestamp otherwise.
type editedFlag bool

// UnmarshalJSON implements json.Unmarshaler.
func (e *editedFlag) UnmarshalJSON(b []byte) error {
	s := string(b)
	*e = s != "false" && s != "null"
	return nil
}

// postData is the payload of a "t3" thing.
type postData struct {
	ID            string     `json:"id"`
	Subreddit     string     `json:"subreddit"`
	Title         string     `json:"title"`
	Selftext      string     `json:"selftext"`
	Author        string     `json:"author"`
	CreatedUTC    float64    `json:"created_utc"`
	Score         int        `json:"score"`
	UpvoteRatio   float64    `json:"upvote_ratio"`
	NumComments   int        `json:"num_comments"`
	Permalink     string     `json:"permalink"`
	LinkFlairText string     `json:"link_flair_text"`
	Edited        editedFlag `json:"edited"`
}

// toModel converts wire post data to the model type. Comments are attached
// later by the walker.
func (d *postData) toModel(collectedAt time.Time) model.Post {
	author := d.Author
	if author == "" {
		author = "[deleted]"
	}
	return model.Post{
		ID:          d.ID,
		Source:      d.Subreddit,
		Title:       d.Title,
		Body:        d.Selftext,
		Author:      author,
		CreatedAt:   time.Unix(int64(d.CreatedUTC), 0).UTC(),
		Score:       d.Score,
		UpvoteRatio: d.UpvoteRatio,
		NumComments: d.NumComments,
		Edited:      bool(d.Edited),
		URL:         permalinkURL(d.Permalink),
		Flair:       d.LinkFlairText,
		CollectedAt: collectedAt,
	}
}

// commentData is the payload of a "t1" thing.
type commentData struct {
	ID          string          `json:"id"`
	LinkID      string          `json:"link_id"`
	ParentID    string          `json:"parent_id"`
	Author      string          `json:"author"`
	Body        string          `json:"body"`
	Score       int             `json:"score"`
	CreatedUTC  float64         `json:"created_utc"`
	Edited      editedFlag      `json:"edited"`
	IsSubmitter bool            `json:"is_submitter"`
	Replies     json.RawMessage `json:"replies"`
}

// toComment converts wire comment data to the flat Comment type.
func (d *commentData) toComment() Comment {
	author := d.Author
	if author == "" {
		author = "[deleted]"
	}
	parent := stripKindPrefix(d.ParentID)
	// A parent reference to the post itself means top-level.
	if strings.HasPrefix(d.ParentID, "t3_") {
		parent = ""
	}
	return Comment{
		ID:          d.ID,
		PostID:      stripKindPrefix(d.LinkID),
		ParentID:    parent,
		Author:      author,
		Body:        d.Body,
		Score:       d.Score,
		CreatedAt:   time.Unix(int64(d.CreatedUTC), 0).UTC(),
		Edited:      bool(d.Edited),
		BySubmitter: d.IsSubmitter,
		HasReplies:  repliesPresent(d.Replies),
	}
}

// repliesPresent reports whether the replies field carries a non-empty
// listing. The platform encodes "no replies" as an empty string.
func repliesPresent(raw json.RawMessage) bool {
	if len(raw) == 0 || string(raw) == `""` || string(raw) == "null" {
		return false
	}
	var l thing
	if err := json.Unmarshal(raw, &l); err != nil {
		return false
	}
	var data listingData
	if err := json.Unmarshal(l.Data, &data); err != nil {
		return false
	}
	return len(data.Children) > 0
}

// stripKindPrefix removes the "t1_"/"t3_" fullname prefix from an ID.
func stripKindPrefix(fullname string) string {
	if i := strings.IndexByte(fullname, '_'); i >= 0 {
		return fullname[i+1:]
	}
	return fullname
}

// permalinkURL expands a relative permalink to the canonical public URL.
func permalinkURL(permalink string) string {
	if permalink == "" {
		return ""
	}
	return "https://reddit.com" + permalink
}
