package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Endpoint defaults. The data API lives on the OAuth host; the token
// endpoint on the public host.
const (
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second

	// maxBodySize limits response bodies read into memory. Listing pages
	// are small; anything larger indicates a broken response.
	maxBodySize = 8 * 1024 * 1024
)

// Credentials holds the application-only OAuth2 client credentials.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

// Validate reports whether all required credential fields are present.
func (c Credentials) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.UserAgent == "" {
		return fmt.Errorf("%w: client id, client secret, and user agent are all required", ErrAuth)
	}
	return nil
}

// Client is a read-only client for the platform's listing, search, and
// comment endpoints. All requests pass through the Fetcher's pacing policy.
// Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	fetcher    *Fetcher
	baseURL    string
	tokenURL   string
	creds      Credentials
	logger     *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the data API base URL. Used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTokenURL overrides the token endpoint URL. Used by tests.
func WithTokenURL(u string) ClientOption {
	return func(c *Client) {
		c.tokenURL = u
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClientLogger sets a custom logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client with the given credentials and fetcher.
// Credentials are validated eagerly so invalid configuration fails the run
// before any request is issued.
func NewClient(creds Credentials, fetcher *Fetcher, opts ...ClientOption) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		fetcher:    fetcher,
		baseURL:    DefaultBaseURL,
		tokenURL:   DefaultTokenURL,
		creds:      creds,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Listing fetches one page of a community listing (hot, new, rising, top).
// after resumes pagination from a cursor; empty starts at the first page.
func (c *Client) Listing(ctx context.Context, source, sort string, limit int, after string) (*PostPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	if after != "" {
		q.Set("after", after)
	}
	if sort == "top" {
		q.Set("t", "week")
	}

	path := fmt.Sprintf("/r/%s/%s", url.PathEscape(source), url.PathEscape(sort))
	return c.postPage(ctx, path, q)
}

// Search fetches one page of search results for a query within a community.
func (c *Client) Search(ctx context.Context, source, query string, limit int, after string) (*PostPage, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("restrict_sr", "1")
	q.Set("sort", "relevance")
	q.Set("t", "week")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	if after != "" {
		q.Set("after", after)
	}

	path := fmt.Sprintf("/r/%s/search", url.PathEscape(source))
	return c.postPage(ctx, path, q)
}

// TopComments fetches up to limit top-scoring top-level comments of a post.
// Replies are not materialized; use Replies per node.
func (c *Client) TopComments(ctx context.Context, postID string, limit int) ([]Comment, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("depth", "1")
	q.Set("sort", "top")
	q.Set("raw_json", "1")

	listings, err := c.commentListings(ctx, postID, q)
	if err != nil {
		return nil, err
	}
	return decodeComments(listings), nil
}

// Replies fetches up to limit top-scoring direct replies of a comment.
func (c *Client) Replies(ctx context.Context, postID, commentID string, limit int) ([]Comment, error) {
	q := url.Values{}
	q.Set("comment", commentID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("depth", "2")
	q.Set("sort", "top")
	q.Set("raw_json", "1")

	listings, err := c.commentListings(ctx, postID, q)
	if err != nil {
		return nil, err
	}

	// The focal comment comes back as the sole child; its replies listing
	// holds the children we want.
	for _, focal := range decodeCommentData(listings) {
		if focal.ID != commentID {
			continue
		}
		if !repliesPresent(focal.Replies) {
			return nil, nil
		}
		var replies thing
		if err := json.Unmarshal(focal.Replies, &replies); err != nil {
			return nil, fmt.Errorf("decoding replies of %s: %w", commentID, err)
		}
		return decodeComments([]thing{replies}), nil
	}
	return nil, nil
}

// postPage fetches and decodes one listing page of posts.
func (c *Client) postPage(ctx context.Context, path string, q url.Values) (*PostPage, error) {
	var envelope thing
	if err := c.fetch(ctx, path, q, &envelope); err != nil {
		return nil, err
	}

	var data listingData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding listing %s: %w", path, err)
	}

	now := time.Now().UTC()
	page := &PostPage{After: data.After}
	for _, child := range data.Children {
		if child.Kind != "t3" {
			continue
		}
		var pd postData
		if err := json.Unmarshal(child.Data, &pd); err != nil {
			c.logger.Warn("skipping undecodable post", "path", path, "error", err)
			continue
		}
		page.Posts = append(page.Posts, pd.toModel(now))
	}
	return page, nil
}

// commentListings fetches the two-listing response of the comments endpoint
// and returns both listings.
func (c *Client) commentListings(ctx context.Context, postID string, q url.Values) ([]thing, error) {
	var listings []thing
	path := "/comments/" + url.PathEscape(postID)
	if err := c.fetch(ctx, path, q, &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("%w: comments response for %s has %d listings", ErrTransient, postID, len(listings))
	}
	// The first listing is the post itself; callers want the second.
	return listings[1:], nil
}

// fetch runs one GET through the fetcher's pacing policy and decodes the
// JSON body into out.
func (c *Client) fetch(ctx context.Context, path string, q url.Values, out any) error {
	return c.fetcher.Do(ctx, func(ctx context.Context) error {
		return c.get(ctx, path, q, out)
	})
}

// get issues a single authenticated GET and classifies failures into the
// package error taxonomy.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: GET %s: %v", ErrTransient, path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, path); err != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrTransient, path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// classifyStatus maps HTTP status codes to the error taxonomy.
func classifyStatus(status int, path string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: GET %s: status %d", ErrAuth, path, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s", ErrNotFound, path)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: GET %s", ErrRateLimited, path)
	case status >= 500:
		return fmt.Errorf("%w: GET %s: status %d", ErrTransient, path, status)
	default:
		return fmt.Errorf("GET %s: unexpected status %d", path, status)
	}
}

// tokenResponse is the token endpoint's payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ensureToken returns a valid bearer token, fetching one with the
// client-credentials grant when missing or near expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Refresh a minute early to avoid using a token mid-expiry.
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: token request: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: token request rejected with status %d", ErrAuth, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: token request: status %d", ErrTransient, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: token response carried no access token", ErrAuth)
	}

	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	c.logger.Debug("obtained access token", "expires_in", tr.ExpiresIn)
	return c.token, nil
}

// decodeCommentData extracts raw comment payloads ("t1" children) from the
// given listings, skipping collapsed "more" stubs.
func decodeCommentData(listings []thing) []commentData {
	var out []commentData
	for _, l := range listings {
		if l.Kind != "Listing" {
			continue
		}
		var data listingData
		if err := json.Unmarshal(l.Data, &data); err != nil {
			continue
		}
		for _, child := range data.Children {
			if child.Kind != "t1" {
				continue
			}
			var cd commentData
			if err := json.Unmarshal(child.Data, &cd); err != nil {
				continue
			}
			out = append(out, cd)
		}
	}
	return out
}

// decodeComments converts listings to flat Comment values.
func decodeComments(listings []thing) []Comment {
	data := decodeCommentData(listings)
	out := make([]Comment, 0, len(data))
	for i := range data {
		out = append(out, data[i].toComment())
	}
	return out
}
