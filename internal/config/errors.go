package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrInvalidStrategy is returned when the strategy is not one of
	// "browse", "search", or "both".
	ErrInvalidStrategy = errors.New("invalid strategy: must be browse, search, or both")

	// ErrNoSources is returned when no community is configured.
	// At least one source must come from the config file or --sources.
	ErrNoSources = errors.New("no sources specified: provide at least one community via config file or --sources")

	// ErrNoKeywords is returned when a search strategy has no keywords.
	// Search discovery queries the platform per keyword, so an empty list
	// would make the strategy a no-op.
	ErrNoKeywords = errors.New("no keywords specified: search strategy requires at least one keyword")

	// ErrInvalidPageSize is returned when the page size is outside the
	// platform's accepted 1-100 range.
	ErrInvalidPageSize = errors.New("invalid page size: must be between 1 and 100")

	// ErrInvalidDaysBack is returned when the age window is negative.
	// Use 0 to disable the age filter.
	ErrInvalidDaysBack = errors.New("invalid days back: must be non-negative")

	// ErrInvalidDepth is returned when the walk depth is negative.
	ErrInvalidDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidConcurrency is returned when the walk concurrency is not
	// positive. Zero would mean no comment trees get walked.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBudget is returned when either rate budget is not
	// positive. A zero budget would deny every request.
	ErrInvalidBudget = errors.New("invalid rate budget: requests per minute and daily ceiling must be positive")

	// ErrInvalidDeadline is returned when the run deadline is negative.
	// Use 0 to run without a deadline.
	ErrInvalidDeadline = errors.New("invalid deadline: must be non-negative")

	// ErrIncrementalWithoutDB is returned when incremental mode is
	// combined with --no-db. Change detection needs a persisted record.
	ErrIncrementalWithoutDB = errors.New("incremental mode requires the database: remove --no-db")
)
