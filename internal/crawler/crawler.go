package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yike5460/commprobe/internal/digest"
	"github.com/yike5460/commprobe/internal/discovery"
	"github.com/yike5460/commprobe/internal/model"
	"github.com/yike5460/commprobe/internal/pipeline"
	"github.com/yike5460/commprobe/internal/relevance"
	"github.com/yike5460/commprobe/internal/walker"
)

// Search-surfaced posts walk a shallower tree than listing candidates to
// conserve the shared request budget.
const (
	searchWalkDepth = 1
	searchTopLimit  = 10
)

// DefaultRunKey scopes content records when the caller does not name one.
const DefaultRunKey = "default"

// Client is the platform access a crawl run needs.
type Client interface {
	discovery.Lister
	discovery.Searcher
	walker.CommentSource
}

// Store persists run output and loads the prior content record.
type Store interface {
	pipeline.Store
	LoadRecord(ctx context.Context, runKey string) (model.ContentRecord, error)
}

// Crawler runs crawls against one platform client and one store.
type Crawler struct {
	client Client
	store  Store
	logger *slog.Logger

	runKey      string
	incremental bool
	concurrency int

	pageSize     int
	daysBack     int
	minPostScore int
	searchLimit  int

	maxDepth        int
	maxChildren     int
	topLimit        int
	minCommentScore int
	preserveAuthor  bool

	mu     sync.Mutex
	active *model.CrawlRun
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithCrawlerLogger sets the logger.
func WithCrawlerLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunKey scopes the content record, so independent configurations can
// share one database without clobbering each other's incremental state.
func WithRunKey(key string) Option {
	return func(c *Crawler) {
		if key != "" {
			c.runKey = key
		}
	}
}

// WithIncremental enables incremental mode: unchanged posts are
// suppressed from the batch and unchanged listings stop early.
func WithIncremental(enabled bool) Option {
	return func(c *Crawler) {
		c.incremental = enabled
	}
}

// WithConcurrency bounds the parallel walk fan-out.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithPageSize sets the posts requested per listing.
func WithPageSize(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithDaysBack sets the listing candidate age window in days.
func WithDaysBack(days int) Option {
	return func(c *Crawler) {
		if days >= 0 {
			c.daysBack = days
		}
	}
}

// WithMinPostScore skips listing candidates scored below the floor.
func WithMinPostScore(score int) Option {
	return func(c *Crawler) {
		c.minPostScore = score
	}
}

// WithSearchLimit sets the posts requested per keyword query.
func WithSearchLimit(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// WithMaxDepth sets the deepest reply level walked for listing candidates.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) {
		if depth >= 0 {
			c.maxDepth = depth
		}
	}
}

// WithMaxChildren caps non-author children kept per comment node.
func WithMaxChildren(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.maxChildren = n
		}
	}
}

// WithTopLimit sets the top-level comments requested per listing post.
func WithTopLimit(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.topLimit = n
		}
	}
}

// WithMinCommentScore sets the comment pruning score floor.
func WithMinCommentScore(score int) Option {
	return func(c *Crawler) {
		c.minCommentScore = score
	}
}

// WithAuthorPreservation toggles keeping post-author comments on posts
// excluded by relevance. Enabled by default.
func WithAuthorPreservation(enabled bool) Option {
	return func(c *Crawler) {
		c.preserveAuthor = enabled
	}
}

// New creates a Crawler.
func New(client Client, store Store, opts ...Option) (*Crawler, error) {
	if client == nil {
		return nil, errors.New("crawler: client is required")
	}
	if store == nil {
		return nil, errors.New("crawler: store is required")
	}

	c := &Crawler{
		client:          client,
		store:           store,
		logger:          slog.Default(),
		runKey:          DefaultRunKey,
		concurrency:     pipeline.DefaultWalkConcurrency,
		pageSize:        discovery.DefaultPageSize,
		daysBack:        discovery.DefaultDaysBack,
		searchLimit:     discovery.DefaultSearchLimit,
		maxDepth:        walker.DefaultMaxDepth,
		maxChildren:     walker.DefaultMaxChildren,
		topLimit:        walker.DefaultTopLimit,
		minCommentScore: walker.DefaultMinScore,
		preserveAuthor:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NotifyBackoff routes a fetcher's backoff transitions into the active
// run's BACKOFF sub-state. Safe to call with no run active; wire it to
// the fetcher's backoff notification at construction time.
func (c *Crawler) NotifyBackoff(entering bool) {
	c.mu.Lock()
	run := c.active
	c.mu.Unlock()
	if run == nil {
		return
	}
	if entering {
		run.EnterBackoff()
	} else {
		run.LeaveBackoff()
	}
}

// Run executes one crawl and returns the merged batch along with the
// finished run. The run is always returned, terminal status set, so the
// caller can report counters and per-source errors even on failure.
//
// A cancelled or expired context does not discard work: the local steps
// still execute over whatever was fetched and the run ends PARTIAL with
// its batch persisted. Only non-isolated errors end the run FAILED with
// nothing persisted.
func (c *Crawler) Run(ctx context.Context, strategy model.Strategy, sources, keywords []string) (*model.Batch, *model.CrawlRun, error) {
	run := model.NewCrawlRun(strategy, sources, keywords)

	if err := validate(strategy, sources, keywords); err != nil {
		run.SetStatus(model.StatusFailed)
		return nil, run, err
	}

	c.mu.Lock()
	c.active = run
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
	}()

	prior, err := c.store.LoadRecord(ctx, c.runKey)
	if err != nil {
		run.SetStatus(model.StatusFailed)
		return nil, run, fmt.Errorf("load content record: %w", err)
	}

	fetch, local := c.buildSteps(prior, keywords)
	st := pipeline.NewState(run)
	pipe := pipeline.New(append(fetch, local...), pipeline.WithLogger(c.logger))

	err = pipe.Execute(ctx, st)
	switch {
	case err == nil:
		run.SetStatus(model.StatusDone)
		return st.Batch, run, nil

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Only the local steps may resume; fetching steps stay stopped.
		return c.finishPartial(ctx, pipeline.New(local, pipeline.WithLogger(c.logger)), st)

	default:
		run.SetStatus(model.StatusFailed)
		return nil, run, err
	}
}

// finishPartial completes an interrupted run: the local steps (filter,
// merge, persist) run free of the expired deadline, and the run ends
// PARTIAL with the accumulated batch persisted.
func (c *Crawler) finishPartial(ctx context.Context, pipe *pipeline.Pipeline, st *pipeline.State) (*model.Batch, *model.CrawlRun, error) {
	run := st.Run
	c.logger.Warn("run interrupted, persisting partial batch",
		"run", run.ID, "performed", st.Performed)

	st.FinalStatus = model.StatusPartial
	if err := pipe.Execute(context.WithoutCancel(ctx), st); err != nil {
		run.SetStatus(model.StatusFailed)
		return nil, run, fmt.Errorf("partial finish: %w", err)
	}

	run.SetStatus(model.StatusPartial)
	return st.Batch, run, nil
}

// buildSteps wires the pipeline for one run. fetch holds the steps that
// issue remote requests; local holds the ones that can still run after
// the deadline to finish a PARTIAL batch.
func (c *Crawler) buildSteps(prior model.ContentRecord, keywords []string) (fetch, local []pipeline.Step) {
	var seen discovery.SeenFunc
	if c.incremental {
		seen = func(p *model.Post) bool {
			prev, ok := prior.Digest(p.ID)
			return ok && prev == digest.ForPost(p)
		}
	}

	listing := discovery.NewListing(c.client,
		discovery.WithPageSize(c.pageSize),
		discovery.WithDaysBack(c.daysBack),
		discovery.WithMinScore(c.minPostScore),
		discovery.WithSeenFunc(seen),
		discovery.WithListingLogger(c.logger),
	)
	search := discovery.NewSearch(c.client,
		discovery.WithSearchLimit(c.searchLimit),
		discovery.WithSearchLogger(c.logger),
	)

	browseWalker := walker.New(c.client,
		walker.WithMaxDepth(c.maxDepth),
		walker.WithMaxChildren(c.maxChildren),
		walker.WithTopLimit(c.topLimit),
		walker.WithMinScore(c.minCommentScore),
		walker.WithLogger(c.logger),
	)
	searchWalker := walker.New(c.client,
		walker.WithMaxDepth(searchWalkDepth),
		walker.WithMaxChildren(c.maxChildren),
		walker.WithTopLimit(searchTopLimit),
		walker.WithMinScore(c.minCommentScore),
		walker.WithLogger(c.logger),
	)

	filter := relevance.New(keywords,
		relevance.WithAuthorPreservation(c.preserveAuthor))
	detector := digest.NewDetector(prior)

	mode := "full"
	if c.incremental {
		mode = "incremental"
	}

	fetch = []pipeline.Step{
		pipeline.NewDiscoverStep(listing, search, c.logger),
		pipeline.NewWalkStep(browseWalker, searchWalker, c.concurrency, c.logger),
	}
	local = []pipeline.Step{
		pipeline.NewFilterStep(filter, detector, c.incremental, c.logger),
		pipeline.NewDedupMergeStep(),
		pipeline.NewPersistStep(c.store, c.runKey, mode, c.logger),
	}
	return fetch, local
}

// validate rejects run parameters that cannot produce a meaningful crawl.
func validate(strategy model.Strategy, sources, keywords []string) error {
	if !strategy.Valid() {
		return fmt.Errorf("crawler: unknown strategy %q", strategy)
	}
	if len(sources) == 0 {
		return errors.New("crawler: at least one source is required")
	}
	if strategy.Search() && len(keywords) == 0 {
		return errors.New("crawler: search strategy requires keywords")
	}
	return nil
}
