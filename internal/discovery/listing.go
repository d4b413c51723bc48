package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yike5460/commprobe/internal/model"
	"github.com/yike5460/commprobe/internal/reddit"
)

const (
	// DefaultPageSize is the number of posts requested per listing.
	DefaultPageSize = 25

	// DefaultDaysBack is the age window for listing candidates. Posts
	// older than this are skipped.
	DefaultDaysBack = 7
)

// DefaultSorts are the listing sort orders enumerated per source.
var DefaultSorts = []string{"hot", "new", "rising", "top"}

// Lister fetches one page of a community listing.
type Lister interface {
	Listing(ctx context.Context, source, sort string, limit int, after string) (*reddit.PostPage, error)
}

// SeenFunc reports whether a post is already known and unchanged from a
// prior run. When it returns true during an incremental crawl, the rest
// of that listing is skipped: listings are ordered, so everything past a
// known-unchanged post was seen before.
type SeenFunc func(p *model.Post) bool

// Result carries one strategy's discovery output. Cursors are keyed by
// listing (source/sort) and resume the next run where this one stopped.
// Errors are keyed by source; a present key means that source's results
// are partial or missing.
type Result struct {
	Posts   []model.Post
	Cursors map[string]string
	Errors  map[string]error
}

func newResult() *Result {
	return &Result{
		Cursors: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

func (r *Result) recordError(source string, err error) {
	if prev, ok := r.Errors[source]; ok {
		err = fmt.Errorf("%v; %w", prev, err)
	}
	r.Errors[source] = err
}

// Listing enumerates candidate posts from community sort-order listings.
type Listing struct {
	lister   Lister
	sorts    []string
	pageSize int
	daysBack int
	minScore int
	seen     SeenFunc
	logger   *slog.Logger
	now      func() time.Time
}

// ListingOption configures a Listing.
type ListingOption func(*Listing)

// WithSorts overrides the sort orders enumerated per source.
func WithSorts(sorts []string) ListingOption {
	return func(l *Listing) {
		if len(sorts) != 0 {
			l.sorts = sorts
		}
	}
}

// WithPageSize sets the posts requested per listing.
func WithPageSize(n int) ListingOption {
	return func(l *Listing) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// WithDaysBack sets the candidate age window in days. Zero disables the
// age filter.
func WithDaysBack(days int) ListingOption {
	return func(l *Listing) {
		l.daysBack = days
	}
}

// WithMinScore skips listing candidates scored below the floor.
func WithMinScore(score int) ListingOption {
	return func(l *Listing) {
		l.minScore = score
	}
}

// WithSeenFunc installs the incremental early-stop hook.
func WithSeenFunc(fn SeenFunc) ListingOption {
	return func(l *Listing) {
		l.seen = fn
	}
}

// WithListingLogger sets the logger.
func WithListingLogger(logger *slog.Logger) ListingOption {
	return func(l *Listing) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewListing creates a listing discovery over the given Lister.
func NewListing(lister Lister, opts ...ListingOption) *Listing {
	l := &Listing{
		lister:   lister,
		sorts:    DefaultSorts,
		pageSize: DefaultPageSize,
		daysBack: DefaultDaysBack,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CursorKey names the resume cursor for one (source, sort) listing.
func CursorKey(source, sort string) string {
	return source + "/" + sort
}

// Discover enumerates every (source, sort) listing once, applying the age
// and score filters and the incremental early-stop hook. cursors resumes
// listings from a prior run and may be nil. The returned error is non-nil
// only for authorization failures and context cancellation; other
// per-source failures land in Result.Errors.
func (l *Listing) Discover(ctx context.Context, sources []string, cursors map[string]string) (*Result, error) {
	res := newResult()
	cutoff := time.Time{}
	if l.daysBack > 0 {
		cutoff = l.now().AddDate(0, 0, -l.daysBack)
	}

	for _, source := range sources {
		for _, sort := range l.sorts {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			key := CursorKey(source, sort)
			page, err := l.lister.Listing(ctx, source, sort, l.pageSize, cursors[key])
			if err != nil {
				if errors.Is(err, reddit.ErrAuth) || ctx.Err() != nil {
					return res, fmt.Errorf("%s %s listing: %w", source, sort, err)
				}
				l.logger.Warn("listing failed", "source", source, "sort", sort, "error", err)
				res.recordError(source, fmt.Errorf("%s listing: %w", sort, err))
				continue
			}
			res.Cursors[key] = page.After

			for i := range page.Posts {
				p := &page.Posts[i]
				if l.seen != nil && l.seen(p) {
					l.logger.Debug("listing early stop on unchanged post",
						"source", source, "sort", sort, "post", p.ID)
					break
				}
				if !cutoff.IsZero() && p.CreatedAt.Before(cutoff) {
					continue
				}
				if p.Score < l.minScore {
					continue
				}
				res.Posts = append(res.Posts, *p)
			}
		}
	}
	return res, nil
}
