package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yike5460/commprobe/internal/model"
)

// State carries a crawl run's accumulating data through the steps.
// It starts empty except for Run and is filled in as steps execute.
type State struct {
	// Run is the live run whose status and counters the steps update.
	Run *model.CrawlRun

	// Candidates holds listing-surfaced posts awaiting a walk.
	Candidates []*model.Post

	// SearchCandidates holds search-surfaced posts awaiting a walk. Kept
	// apart from Candidates because they walk a shallower tree profile.
	SearchCandidates []*model.Post

	// Posts holds walked posts that survived filtering.
	Posts []*model.Post

	// Batch is the merged, deduplicated output. Set by DEDUP_MERGE.
	Batch *model.Batch

	// Record is the content record to commit for the next incremental
	// run. Set by FILTER; covers every item seen, changed or not.
	Record model.ContentRecord

	// FinalStatus is the terminal status PERSIST stamps into the batch
	// metadata. The orchestrator downgrades it to PARTIAL when a deadline
	// interrupted the run.
	FinalStatus model.RunStatus

	// Performed lists the names of steps that completed, in order.
	Performed []string
}

// NewState creates the state for one run.
func NewState(run *model.CrawlRun) *State {
	return &State{
		Run:         run,
		FinalStatus: model.StatusDone,
	}
}

// Done reports whether the named step already completed.
func (s *State) Done(name string) bool {
	for _, n := range s.Performed {
		if n == name {
			return true
		}
	}
	return false
}

// Step is one state of the crawl run's state machine.
type Step interface {
	// Do executes the step against the shared state. Errors returned here
	// abort the pipeline; recoverable per-source errors belong in the
	// run's error map instead.
	Do(ctx context.Context, st *State) error

	// Name returns the step's name for logging.
	Name() string

	// Status returns the run status this step executes under.
	Status() model.RunStatus
}

// Pipeline runs steps in order, transitioning the run status as it goes.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline over the given steps.
func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:  steps,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs the steps in order. Steps already recorded in st.Performed
// are skipped, so a pipeline can be re-entered to finish the local steps
// of an interrupted run.
//
// Cancellation is checked between steps; a cancelled context stops the
// pipeline before the next step starts and returns the context's error.
func (p *Pipeline) Execute(ctx context.Context, st *State) error {
	for _, step := range p.steps {
		if st.Done(step.Name()) {
			continue
		}

		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"run", st.Run.ID,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		st.Run.SetStatus(step.Status())
		p.logger.Info("executing step", "step", step.Name(), "run", st.Run.ID)

		if err := step.Do(ctx, st); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run", st.Run.ID,
				"error", err,
			)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}

		st.Performed = append(st.Performed, step.Name())
		p.logger.Debug("step completed", "step", step.Name(), "run", st.Run.ID)
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
