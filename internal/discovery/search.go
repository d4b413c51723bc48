package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yike5460/commprobe/internal/reddit"
)

// DefaultSearchLimit is the number of posts requested per keyword query.
const DefaultSearchLimit = 10

// Searcher runs one keyword query against a community.
type Searcher interface {
	Search(ctx context.Context, source, query string, limit int, after string) (*reddit.PostPage, error)
}

// Search enumerates candidate posts matching keyword queries. Every hit
// is tagged with the query that surfaced it, so search candidates carry a
// matched keyword even before the relevance filter runs.
type Search struct {
	searcher Searcher
	limit    int
	logger   *slog.Logger
}

// SearchOption configures a Search.
type SearchOption func(*Search)

// WithSearchLimit sets the posts requested per keyword query.
func WithSearchLimit(n int) SearchOption {
	return func(s *Search) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithSearchLogger sets the logger.
func WithSearchLogger(logger *slog.Logger) SearchOption {
	return func(s *Search) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearch creates a search discovery over the given Searcher.
func NewSearch(searcher Searcher, opts ...SearchOption) *Search {
	s := &Search{
		searcher: searcher,
		limit:    DefaultSearchLimit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// searchCursorKey names the resume cursor for one (source, query) search.
func searchCursorKey(source, query string) string {
	return source + "/search:" + query
}

// Discover runs every keyword query against every source. cursors resumes
// queries from a prior run and may be nil. The returned error is non-nil
// only for authorization failures and context cancellation; other
// per-source failures land in Result.Errors.
func (s *Search) Discover(ctx context.Context, sources, keywords []string, cursors map[string]string) (*Result, error) {
	res := newResult()

	for _, source := range sources {
		for _, keyword := range keywords {
			if keyword == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}

			key := searchCursorKey(source, keyword)
			page, err := s.searcher.Search(ctx, source, keyword, s.limit, cursors[key])
			if err != nil {
				if errors.Is(err, reddit.ErrAuth) || ctx.Err() != nil {
					return res, fmt.Errorf("%s search %q: %w", source, keyword, err)
				}
				s.logger.Warn("search failed", "source", source, "keyword", keyword, "error", err)
				res.recordError(source, fmt.Errorf("search %q: %w", keyword, err))
				continue
			}
			res.Cursors[key] = page.After

			for i := range page.Posts {
				p := page.Posts[i]
				p.AddKeywords(keyword)
				res.Posts = append(res.Posts, p)
			}
		}
	}
	return res, nil
}
