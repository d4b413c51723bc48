package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yike5460/commprobe/internal/digest"
	"github.com/yike5460/commprobe/internal/discovery"
	"github.com/yike5460/commprobe/internal/model"
	"github.com/yike5460/commprobe/internal/reddit"
	"github.com/yike5460/commprobe/internal/relevance"
	"github.com/yike5460/commprobe/internal/walker"
)

// DefaultWalkConcurrency bounds the parallel walk fan-out. The shared rate
// budget is the real throttle; this only caps goroutines.
const DefaultWalkConcurrency = 4

// ListingSource surfaces candidate posts from community listings.
type ListingSource interface {
	Discover(ctx context.Context, sources []string, cursors map[string]string) (*discovery.Result, error)
}

// SearchSource surfaces candidate posts from keyword queries.
type SearchSource interface {
	Discover(ctx context.Context, sources, keywords []string, cursors map[string]string) (*discovery.Result, error)
}

// TreeWalker fetches a post's bounded comment tree.
type TreeWalker interface {
	Walk(ctx context.Context, post *model.Post) (walker.Stats, error)
}

// Store persists a run's output batch and the content record for the next
// incremental run.
type Store interface {
	SaveRecord(ctx context.Context, runKey string, rec model.ContentRecord) error
	SaveBatch(ctx context.Context, batch *model.Batch) error
}

// DiscoverStep runs the requested discovery strategies and unions their
// candidates. Per-source failures are recorded on the run and never abort
// the step.
type DiscoverStep struct {
	listing ListingSource
	search  SearchSource
	logger  *slog.Logger
}

// NewDiscoverStep creates the DISCOVER step. Either source may be nil when
// the strategy never uses it.
func NewDiscoverStep(listing ListingSource, search SearchSource, logger *slog.Logger) *DiscoverStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoverStep{listing: listing, search: search, logger: logger}
}

// Name implements Step.
func (s *DiscoverStep) Name() string { return "discover" }

// Status implements Step.
func (s *DiscoverStep) Status() model.RunStatus { return model.StatusDiscover }

// Do implements Step.
func (s *DiscoverStep) Do(ctx context.Context, st *State) error {
	run := st.Run

	if run.Strategy.Browse() && s.listing != nil {
		res, err := s.listing.Discover(ctx, run.Sources, run.Cursors)
		if err != nil {
			return err
		}
		st.Candidates = append(st.Candidates, s.adopt(run, res)...)
	}

	if run.Strategy.Search() && s.search != nil {
		res, err := s.search.Discover(ctx, run.Sources, run.Keywords, run.Cursors)
		if err != nil {
			return err
		}
		st.SearchCandidates = append(st.SearchCandidates, s.adopt(run, res)...)
	}

	run.AddPostsFetched(len(st.Candidates) + len(st.SearchCandidates))
	s.logger.Info("discovery complete",
		"run", run.ID,
		"listing_candidates", len(st.Candidates),
		"search_candidates", len(st.SearchCandidates),
	)
	return nil
}

// adopt folds one strategy's result into the run and returns its posts.
func (s *DiscoverStep) adopt(run *model.CrawlRun, res *discovery.Result) []*model.Post {
	for key, cursor := range res.Cursors {
		run.SetCursor(key, cursor)
	}
	for source, err := range res.Errors {
		run.RecordSourceError(source, err)
	}
	posts := make([]*model.Post, len(res.Posts))
	for i := range res.Posts {
		posts[i] = &res.Posts[i]
	}
	return posts
}

// WalkStep fetches comment trees for every candidate post. Listing
// candidates walk the deep profile, search candidates the shallow one.
// Independent posts walk concurrently; the shared rate budget inside the
// fetcher keeps total request pacing unchanged.
type WalkStep struct {
	browse      TreeWalker
	search      TreeWalker
	concurrency int
	logger      *slog.Logger
}

// NewWalkStep creates the WALK step.
func NewWalkStep(browse, search TreeWalker, concurrency int, logger *slog.Logger) *WalkStep {
	if concurrency <= 0 {
		concurrency = DefaultWalkConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WalkStep{browse: browse, search: search, concurrency: concurrency, logger: logger}
}

// Name implements Step.
func (s *WalkStep) Name() string { return "walk" }

// Status implements Step.
func (s *WalkStep) Status() model.RunStatus { return model.StatusWalk }

// Do implements Step. A post whose walk fails with a recoverable error is
// kept without its tree and the failure is recorded per source; an
// authorization failure aborts the whole step. On cancellation, posts
// already walked stay in the state for the PARTIAL path.
func (s *WalkStep) Do(ctx context.Context, st *State) error {
	type unit struct {
		post *model.Post
		tw   TreeWalker
	}

	var units []unit
	for _, p := range st.Candidates {
		units = append(units, unit{post: p, tw: s.browse})
	}
	for _, p := range st.SearchCandidates {
		units = append(units, unit{post: p, tw: s.search})
	}

	results := make([]*model.Post, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, u := range units {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			stats, err := u.tw.Walk(gctx, u.post)
			st.Run.AddCommentsFetched(stats.Fetched)
			st.Run.AddPrunedByScore(stats.PrunedByScore)

			if err != nil {
				if errors.Is(err, reddit.ErrAuth) || gctx.Err() != nil {
					return err
				}
				s.logger.Warn("walk failed, post kept without tree",
					"post", u.post.ID, "source", u.post.Source, "error", err)
				st.Run.RecordSourceError(u.post.Source, err)
			}
			results[i] = u.post
			return nil
		})
	}

	err := g.Wait()
	for _, p := range results {
		if p != nil {
			st.Posts = append(st.Posts, p)
		}
	}
	return err
}

// FilterStep applies the relevance filter and the change detector. The
// detector observes every item seen, kept or not, so the committed record
// lets the next incremental run compare correctly.
type FilterStep struct {
	filter      *relevance.Filter
	detector    *digest.Detector
	incremental bool
	logger      *slog.Logger
}

// NewFilterStep creates the FILTER step. detector carries the prior run's
// record; incremental additionally suppresses unchanged posts from the
// output.
func NewFilterStep(filter *relevance.Filter, detector *digest.Detector, incremental bool, logger *slog.Logger) *FilterStep {
	if logger == nil {
		logger = slog.Default()
	}
	if detector == nil {
		detector = digest.NewDetector(model.NewContentRecord())
	}
	return &FilterStep{filter: filter, detector: detector, incremental: incremental, logger: logger}
}

// Name implements Step.
func (s *FilterStep) Name() string { return "filter" }

// Status implements Step.
func (s *FilterStep) Status() model.RunStatus { return model.StatusFilter }

// Do implements Step.
func (s *FilterStep) Do(_ context.Context, st *State) error {
	var kept []*model.Post

	for _, p := range st.Posts {
		postDigest := digest.ForPost(p)
		seenTree := p.Comments

		out, keep := s.filter.Apply(p)
		if !keep || out.Stub {
			st.Run.AddPrunedByRelevance(1)
		}

		changed := s.detector.Observe(p.ID, postDigest)
		for _, c := range seenTree {
			c.Visit(func(n *model.CommentNode) {
				if s.detector.Observe(n.ID, n.Digest) {
					changed = true
				}
			})
		}

		if !keep {
			continue
		}
		if s.incremental && !changed {
			continue
		}
		kept = append(kept, out)
	}

	st.Posts = kept
	st.Record = s.detector.Record()
	s.logger.Info("filter complete", "run", st.Run.ID, "kept", len(kept))
	return nil
}

// DedupMergeStep merges posts discovered by both strategies into one
// batch. Posts merge by ID: keyword sets union, richer fields win, and a
// full post always beats an author-preservation stub.
type DedupMergeStep struct{}

// NewDedupMergeStep creates the DEDUP_MERGE step.
func NewDedupMergeStep() *DedupMergeStep { return &DedupMergeStep{} }

// Name implements Step.
func (s *DedupMergeStep) Name() string { return "dedup_merge" }

// Status implements Step.
func (s *DedupMergeStep) Status() model.RunStatus { return model.StatusDedupMerge }

// Do implements Step.
func (s *DedupMergeStep) Do(_ context.Context, st *State) error {
	byID := make(map[string]*model.Post, len(st.Posts))
	var merged []*model.Post

	for _, p := range st.Posts {
		if existing, ok := byID[p.ID]; ok {
			existing.Merge(p)
			continue
		}
		byID[p.ID] = p
		merged = append(merged, p)
	}

	st.Batch = &model.Batch{Posts: merged}
	st.Batch.TallyMentions(st.Run.Keywords)
	return nil
}

// PersistStep commits the batch and the content record through the Store.
type PersistStep struct {
	store  Store
	runKey string
	mode   string
	logger *slog.Logger
	now    func() time.Time
}

// NewPersistStep creates the PERSIST step. runKey scopes the content
// record; mode is "incremental" or "full".
func NewPersistStep(store Store, runKey, mode string, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{store: store, runKey: runKey, mode: mode, logger: logger, now: time.Now}
}

// Name implements Step.
func (s *PersistStep) Name() string { return "persist" }

// Status implements Step.
func (s *PersistStep) Status() model.RunStatus { return model.StatusPersist }

// Do implements Step. The batch metadata is stamped with the run's final
// status before writing so the stored document matches what the run
// reports after it ends.
func (s *PersistStep) Do(ctx context.Context, st *State) error {
	snap := st.Run.Snapshot()

	md := model.RunMetadata{
		RunID:          snap.ID,
		Mode:           s.mode,
		Strategy:       snap.Strategy,
		StartedAt:      snap.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:     s.now().UTC().Format(time.RFC3339),
		Status:         st.FinalStatus,
		Counts:         snap.Counts,
		ErrorsBySource: snap.ErrorsBySource,
		Mentions:       st.Batch.Metadata.Mentions,
	}
	st.Batch.Metadata = md

	if err := s.store.SaveBatch(ctx, st.Batch); err != nil {
		return err
	}
	if err := s.store.SaveRecord(ctx, s.runKey, st.Record); err != nil {
		return err
	}

	s.logger.Info("batch persisted",
		"run", snap.ID,
		"posts", len(st.Batch.Posts),
		"comments", st.Batch.CommentTotal(),
		"record_items", st.Record.Len(),
	)
	return nil
}
