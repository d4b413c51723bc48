package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/yike5460/commprobe/internal/model"
)

// Default configuration values.
// These values are tuned to the platform API's free-tier allowances and
// to keeping a full crawl of a handful of communities within one run.
const (
	// DefaultStrategy runs both listing and search discovery and merges
	// the results. Either half can be selected alone via the CLI.
	DefaultStrategy = string(model.StrategyBoth)

	// DefaultPageSize is the listing page size requested per discovery
	// unit. 25 matches the platform's default page and keeps one unit to
	// one request.
	DefaultPageSize = 25

	// DefaultDaysBack bounds listing discovery to the trailing week.
	// Older posts rarely see new comment activity worth re-walking.
	DefaultDaysBack = 7

	// DefaultSearchLimit caps search results per keyword per community.
	// Search hits walk shallower trees, so a tighter cap conserves the
	// request budget for listings.
	DefaultSearchLimit = 10

	// DefaultMaxDepth is the comment tree walk depth for listing posts.
	// Depth 4 reaches the long-tail replies where evaluations of a tool
	// usually appear without exploding request counts.
	DefaultMaxDepth = 4

	// DefaultMaxChildren caps replies fetched per comment node.
	DefaultMaxChildren = 10

	// DefaultTopLimit caps top-level comments fetched per post.
	DefaultTopLimit = 20

	// DefaultMinCommentScore drops heavily downvoted comments. -5 keeps
	// mildly controversial takes while cutting spam and abuse.
	DefaultMinCommentScore = -5

	// DefaultConcurrency is the number of posts walked in parallel.
	// The shared rate budget serializes requests anyway, so this mainly
	// bounds in-flight trees.
	DefaultConcurrency = 4

	// DefaultRequestsPerMinute matches the platform's free-tier window.
	DefaultRequestsPerMinute = 30

	// DefaultDailyCeiling bounds total requests per UTC day so scheduled
	// runs never exhaust the app's allowance.
	DefaultDailyCeiling = 1000

	// DefaultDeadline bounds one run end to end. When it elapses the run
	// finishes as PARTIAL with whatever was accumulated.
	DefaultDeadline = 10 * time.Minute

	// DefaultUserAgent identifies commprobe in API requests. The platform
	// requires a descriptive User-Agent and throttles generic ones.
	DefaultUserAgent = "commprobe/2.0 (+https://github.com/yike5460/commprobe)"

	// DefaultWatchSchedule runs an incremental crawl every six hours when
	// the watch command is given no cron expression.
	DefaultWatchSchedule = "0 */6 * * *"

	// AppName is the application name used for XDG directory paths.
	AppName = "commprobe"
)

// Config holds all configuration options for commprobe.
// This struct is designed to be populated from the config file and CLI
// flags and passed through the application via dependency injection rather
// than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., DiscoveryConfig, WalkConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// Strategy selects discovery: "browse", "search", or "both".
	Strategy string

	// Sources is the list of community names to crawl.
	// Must contain at least one entry.
	Sources []string

	// Keywords is the list of tracked product or company names.
	// Required when the strategy includes search; also drives relevance
	// filtering and the mention tally.
	Keywords []string

	// Incremental enables change detection against the stored content
	// record: unchanged items are suppressed from the output batch and
	// listings stop early at the first unchanged post.
	Incremental bool

	// RunKey namespaces the stored content record. Separate watch
	// profiles can track independent records against one database.
	RunKey string

	// PageSize is the listing page size per discovery unit (1-100).
	PageSize int

	// DaysBack bounds listing discovery to posts at most this many days
	// old. Zero disables the age filter.
	DaysBack int

	// MinPostScore drops listing posts below this score during discovery.
	MinPostScore int

	// SearchLimit caps search results per keyword per community.
	SearchLimit int

	// MaxDepth is the comment walk depth limit for listing posts.
	// Search hits always walk depth 1 regardless of this setting.
	MaxDepth int

	// MaxChildren caps replies fetched per comment node.
	MaxChildren int

	// TopLimit caps top-level comments fetched per post.
	TopLimit int

	// MinCommentScore prunes comment subtrees below this score.
	// Comments by the post's author are exempt.
	MinCommentScore int

	// Concurrency is the number of posts walked in parallel.
	Concurrency int

	// RequestsPerMinute is the sliding-window request budget.
	RequestsPerMinute int

	// DailyCeiling is the per-UTC-day request budget shared across runs.
	DailyCeiling int

	// Deadline bounds one run end to end. When it elapses, local steps
	// finish on the accumulated data and the run ends PARTIAL.
	Deadline time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .commprobe in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// MarkdownReport enables a Markdown run summary alongside the JSON
	// batch output.
	MarkdownReport bool

	// ReportFile is the output file path for the JSON batch.
	// When set, the batch is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to the XDG data directory. The database holds the content
	// record, run history, and the shared daily request counter.
	DBDir string

	// NoDB disables the on-disk database. The run uses an in-memory
	// store: no record survives, so incremental mode is unavailable.
	NoDB bool

	// UserAgent is the User-Agent header sent with API requests.
	UserAgent string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., page size, depth).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Strategy:          DefaultStrategy,
		RunKey:            "default",
		PageSize:          DefaultPageSize,
		DaysBack:          DefaultDaysBack,
		SearchLimit:       DefaultSearchLimit,
		MaxDepth:          DefaultMaxDepth,
		MaxChildren:       DefaultMaxChildren,
		TopLimit:          DefaultTopLimit,
		MinCommentScore:   DefaultMinCommentScore,
		Concurrency:       DefaultConcurrency,
		RequestsPerMinute: DefaultRequestsPerMinute,
		DailyCeiling:      DefaultDailyCeiling,
		Deadline:          DefaultDeadline,
		UserAgent:         DefaultUserAgent,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for commprobe.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/commprobe
// On macOS: ~/Library/Application Support/commprobe
// On Windows: %LOCALAPPDATA%\commprobe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for commprobe.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/commprobe
// On macOS: ~/Library/Application Support/commprobe
// On Windows: %APPDATA%\commprobe
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if !model.Strategy(c.Strategy).Valid() {
		return ErrInvalidStrategy
	}

	// We must have at least one community to crawl
	if len(c.Sources) == 0 {
		return ErrNoSources
	}

	// Search discovery is keyword-driven
	if model.Strategy(c.Strategy).Search() && len(c.Keywords) == 0 {
		return ErrNoKeywords
	}

	if c.PageSize < 1 || c.PageSize > 100 {
		return ErrInvalidPageSize
	}

	if c.DaysBack < 0 {
		return ErrInvalidDaysBack
	}

	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestsPerMinute <= 0 || c.DailyCeiling <= 0 {
		return ErrInvalidBudget
	}

	if c.Deadline < 0 {
		return ErrInvalidDeadline
	}

	// Incremental mode needs a record to compare against
	if c.Incremental && c.NoDB {
		return ErrIncrementalWithoutDB
	}

	return nil
}
