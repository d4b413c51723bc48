package reddit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/yike5460/commprobe/internal/ratelimit"
)

// Default pacing values.
const (
	// DefaultBackoffBase is the first backoff delay after a remote
	// rate-limit response. Doubled on each further hit.
	DefaultBackoffBase = 60 * time.Second

	// DefaultMaxRateRetries bounds backoff retries before the call is
	// surfaced as ErrRateLimitExceeded.
	DefaultMaxRateRetries = 3

	// DefaultMaxTransientRetries bounds short retries of network errors.
	DefaultMaxTransientRetries = 3

	// DefaultAPIDelayMin and DefaultAPIDelayMax bound the randomized
	// post-success delay that keeps request bursts under the provider's
	// tolerance.
	DefaultAPIDelayMin = 100 * time.Millisecond
	DefaultAPIDelayMax = 1 * time.Second
)

// Fetcher paces and retries calls against the remote API. Every request
// the client issues passes through Do, so the shared rate budget is the
// single point of contention for any concurrent fan-out.
type Fetcher struct {
	budget *ratelimit.Budget

	backoffBase         time.Duration
	maxRateRetries      int
	maxTransientRetries int
	apiDelayMin         time.Duration
	apiDelayMax         time.Duration

	// onBackoff, when set, is called with true on entering a remote
	// rate-limit backoff sleep and false on leaving it. The orchestrator
	// uses it to reflect the BACKOFF sub-state on the run.
	onBackoff func(entering bool)

	// sleep is replaceable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithBackoffBase sets the initial backoff delay for remote rate limits.
func WithBackoffBase(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.backoffBase = d
		}
	}
}

// WithMaxRateRetries sets how many backoff retries are attempted before
// giving up with ErrRateLimitExceeded.
func WithMaxRateRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRateRetries = n
		}
	}
}

// WithMaxTransientRetries sets how many short retries transient network
// errors get.
func WithMaxTransientRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxTransientRetries = n
		}
	}
}

// WithAPIDelay sets the bounds of the randomized post-success delay.
func WithAPIDelay(minDelay, maxDelay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if minDelay >= 0 && maxDelay >= minDelay {
			f.apiDelayMin = minDelay
			f.apiDelayMax = maxDelay
		}
	}
}

// WithBackoffNotify registers a callback invoked when a remote rate-limit
// backoff sleep starts (true) and ends (false).
func WithBackoffNotify(fn func(entering bool)) FetcherOption {
	return func(f *Fetcher) {
		f.onBackoff = fn
	}
}

// WithFetcherLogger sets a custom logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher drawing on the given budget.
func NewFetcher(budget *ratelimit.Budget, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		budget:              budget,
		backoffBase:         DefaultBackoffBase,
		maxRateRetries:      DefaultMaxRateRetries,
		maxTransientRetries: DefaultMaxTransientRetries,
		apiDelayMin:         DefaultAPIDelayMin,
		apiDelayMax:         DefaultAPIDelayMax,
		sleep:               sleepCtx,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do runs one API call under the pacing policy:
//
//   - the rate budget is acquired first; while denied, Do sleeps the wait
//     hint and retries acquisition without sending anything
//   - a remote rate-limit error triggers exponential backoff (base doubled
//     per hit, small jitter added) up to the retry bound, then
//     ErrRateLimitExceeded
//   - a transient error triggers a short jittered retry up to its bound
//   - authorization and not-found errors return immediately
//   - every success is followed by a small randomized delay
func (f *Fetcher) Do(ctx context.Context, call func(context.Context) error) error {
	rateHits := 0
	transientHits := 0

	for {
		if err := f.acquire(ctx); err != nil {
			return err
		}

		err := call(ctx)
		if err == nil {
			// Post-success politeness delay. Cancellation here does not
			// fail the call; the result is already in hand.
			_ = f.sleep(ctx, f.jitter(f.apiDelayMin, f.apiDelayMax))
			return nil
		}

		switch {
		case errors.Is(err, ErrRateLimited):
			rateHits++
			if rateHits > f.maxRateRetries {
				return fmt.Errorf("%w after %d attempts: %w", ErrRateLimitExceeded, rateHits, err)
			}
			delay := f.backoffBase<<(rateHits-1) + f.jitter(0, f.backoffBase/4)
			f.logger.Warn("remote rate limit, backing off",
				"attempt", rateHits,
				"delay", delay,
			)
			if f.onBackoff != nil {
				f.onBackoff(true)
			}
			sleepErr := f.sleep(ctx, delay)
			if f.onBackoff != nil {
				f.onBackoff(false)
			}
			if sleepErr != nil {
				return sleepErr
			}

		case errors.Is(err, ErrTransient):
			transientHits++
			if transientHits > f.maxTransientRetries {
				return err
			}
			delay := f.jitter(DefaultAPIDelayMin, DefaultAPIDelayMax)
			f.logger.Debug("transient error, retrying",
				"attempt", transientHits,
				"delay", delay,
				"error", err,
			)
			if sleepErr := f.sleep(ctx, delay); sleepErr != nil {
				return sleepErr
			}

		default:
			return err
		}
	}
}

// acquire blocks until the budget admits one request or the context ends.
func (f *Fetcher) acquire(ctx context.Context) error {
	for {
		allowed, hint := f.budget.TryAcquire()
		if allowed {
			return nil
		}
		f.logger.Debug("rate budget exhausted, waiting", "hint", hint)
		if err := f.sleep(ctx, hint); err != nil {
			return err
		}
	}
}

// jitter returns a random duration in [minDelay, maxDelay].
func (f *Fetcher) jitter(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	return minDelay + rand.N(maxDelay-minDelay)
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
