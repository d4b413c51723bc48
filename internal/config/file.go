package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so the config file accepts "10m" style
// strings as well as raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Limits holds the numeric crawl limits section of the configuration file.
// Zero values mean "keep the default"; only explicitly set fields override.
type Limits struct {
	// PageSize is the listing page size per discovery unit.
	PageSize int `yaml:"page_size,omitempty"`

	// DaysBack bounds listing discovery to posts this many days old.
	DaysBack int `yaml:"days_back,omitempty"`

	// MinPostScore drops listing posts below this score.
	MinPostScore int `yaml:"min_post_score,omitempty"`

	// SearchLimit caps search results per keyword per community.
	SearchLimit int `yaml:"search_limit,omitempty"`

	// MaxDepth is the comment walk depth limit for listing posts.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// MaxChildren caps replies fetched per comment node.
	MaxChildren int `yaml:"max_children,omitempty"`

	// TopLimit caps top-level comments fetched per post.
	TopLimit int `yaml:"top_limit,omitempty"`

	// MinCommentScore prunes comment subtrees below this score.
	// This is the one limit where a negative value is meaningful, so it
	// uses a pointer to distinguish "unset" from "zero".
	MinCommentScore *int `yaml:"min_comment_score,omitempty"`

	// Concurrency is the number of posts walked in parallel.
	Concurrency int `yaml:"concurrency,omitempty"`

	// RequestsPerMinute is the sliding-window request budget.
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`

	// DailyCeiling is the per-UTC-day request budget.
	DailyCeiling int `yaml:"daily_ceiling,omitempty"`

	// Deadline bounds one run end to end, e.g. "10m".
	Deadline Duration `yaml:"deadline,omitempty"`
}

// File represents the structure of the .commprobe configuration file.
type File struct {
	// Strategy selects discovery: "browse", "search", or "both".
	Strategy string `yaml:"strategy,omitempty"`

	// Sources is the list of community names to crawl.
	Sources []string `yaml:"sources,omitempty"`

	// Keywords is the list of tracked product or company names.
	Keywords []string `yaml:"keywords,omitempty"`

	// Incremental enables change detection against the stored record.
	// A pointer distinguishes "unset" from an explicit false.
	Incremental *bool `yaml:"incremental,omitempty"`

	// RunKey namespaces the stored content record.
	RunKey string `yaml:"run_key,omitempty"`

	// UserAgent overrides the User-Agent header sent with API requests.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Limits holds the numeric crawl limits.
	Limits Limits `yaml:"limits,omitempty"`
}

// ApplyTo overlays the file's explicitly set values onto the config.
// CLI flags are applied after this, so the precedence is
// defaults < config file < flags.
func (f *File) ApplyTo(c *Config) {
	if f.Strategy != "" {
		c.Strategy = f.Strategy
	}
	if len(f.Sources) > 0 {
		c.Sources = f.Sources
	}
	if len(f.Keywords) > 0 {
		c.Keywords = f.Keywords
	}
	if f.Incremental != nil {
		c.Incremental = *f.Incremental
	}
	if f.RunKey != "" {
		c.RunKey = f.RunKey
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}

	l := f.Limits
	if l.PageSize != 0 {
		c.PageSize = l.PageSize
	}
	if l.DaysBack != 0 {
		c.DaysBack = l.DaysBack
	}
	if l.MinPostScore != 0 {
		c.MinPostScore = l.MinPostScore
	}
	if l.SearchLimit != 0 {
		c.SearchLimit = l.SearchLimit
	}
	if l.MaxDepth != 0 {
		c.MaxDepth = l.MaxDepth
	}
	if l.MaxChildren != 0 {
		c.MaxChildren = l.MaxChildren
	}
	if l.TopLimit != 0 {
		c.TopLimit = l.TopLimit
	}
	if l.MinCommentScore != nil {
		c.MinCommentScore = *l.MinCommentScore
	}
	if l.Concurrency != 0 {
		c.Concurrency = l.Concurrency
	}
	if l.RequestsPerMinute != 0 {
		c.RequestsPerMinute = l.RequestsPerMinute
	}
	if l.DailyCeiling != 0 {
		c.DailyCeiling = l.DailyCeiling
	}
	if l.Deadline != 0 {
		c.Deadline = time.Duration(l.Deadline)
	}
}
