package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yike5460/commprobe/internal/config"
	"github.com/yike5460/commprobe/internal/crawler"
	"github.com/yike5460/commprobe/internal/database"
	"github.com/yike5460/commprobe/internal/log"
	"github.com/yike5460/commprobe/internal/model"
	"github.com/yike5460/commprobe/internal/ratelimit"
	"github.com/yike5460/commprobe/internal/reddit"
	"github.com/yike5460/commprobe/internal/report"
)

// Environment variable names for the platform API credentials.
const (
	envClientID     = "COMMPROBE_CLIENT_ID"
	envClientSecret = "COMMPROBE_CLIENT_SECRET" //nolint:gosec // env var name, not a credential
	envUserAgent    = "COMMPROBE_USER_AGENT"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl over the configured communities",
		Long: `Crawl discovers candidate posts in the configured communities, walks their
comment trees within the request budget, filters for relevance against the
tracked keywords, and persists the merged batch.

Discovery strategies:
  browse  - walk the community listings (hot/new/rising/top)
  search  - query the platform's search endpoint per keyword
  both    - union of the two, deduplicated (default)

Examples:
  # Crawl with sources and keywords from .commprobe
  commprobe crawl

  # One-off crawl of two communities
  commprobe crawl --sources LawFirm,paralegal --keywords Supio,EvenUp

  # Incremental crawl: only new or changed content in the batch
  commprobe crawl --incremental

  # Write the JSON batch to a file and print a Markdown summary
  commprobe crawl --json -o batch.json --markdown

Credentials are read from COMMPROBE_CLIENT_ID and COMMPROBE_CLIENT_SECRET.
A .env file in the working directory is honored.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	addCrawlFlags(cmd)

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the JSON batch (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown run summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write output to specified file path (creates directories if needed)")

	return cmd
}

// addCrawlFlags registers the flags shared by crawl and watch.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("strategy", "s", config.DefaultStrategy,
		"Discovery strategy: browse, search, or both")
	cmd.Flags().StringSlice("sources", nil,
		"Communities to crawl (comma separated)")
	cmd.Flags().StringSlice("keywords", nil,
		"Tracked product or company names (comma separated)")
	cmd.Flags().BoolP("incremental", "i", false,
		"Suppress content unchanged since the previous run")
	cmd.Flags().String("run-key", "",
		"Namespace for the stored content record")

	cmd.Flags().Int("page-size", config.DefaultPageSize,
		"Listing page size per discovery unit (1-100)")
	cmd.Flags().Int("days-back", config.DefaultDaysBack,
		"Only consider listing posts at most this many days old (0 = no limit)")
	cmd.Flags().Int("min-post-score", 0,
		"Drop listing posts below this score")
	cmd.Flags().Int("search-limit", config.DefaultSearchLimit,
		"Search results per keyword per community")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Comment tree walk depth for listing posts")
	cmd.Flags().Int("max-children", config.DefaultMaxChildren,
		"Replies fetched per comment node")
	cmd.Flags().Int("top-limit", config.DefaultTopLimit,
		"Top-level comments fetched per post")
	cmd.Flags().Int("min-comment-score", config.DefaultMinCommentScore,
		"Prune comment subtrees below this score (post author exempt)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Posts walked in parallel")

	cmd.Flags().Int("requests-per-minute", config.DefaultRequestsPerMinute,
		"Sliding-window request budget")
	cmd.Flags().Int("daily-ceiling", config.DefaultDailyCeiling,
		"Per-day request budget shared across runs")
	cmd.Flags().Duration("deadline", config.DefaultDeadline,
		"Bound one run end to end (0 = no deadline)")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .commprobe in current or home directory)")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().Bool("no-db", false,
		"Run without the on-disk database (disables incremental mode)")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOut && cfg.MarkdownReport {
		return errors.New("conflicting report formats: --json and --markdown cannot be used together")
	}

	// Set up structured logging with credential masking
	verbose := getVerboseFlag(cmd)
	logger := log.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown.
	// Cancellation flows into the run; accumulated work ends as PARTIAL.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	batch, run, err := runCrawl(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := outputBatch(cmd.OutOrStdout(), cfg, jsonOut, batch); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if run.CurrentStatus() == model.StatusPartial {
		fmt.Fprintln(os.Stderr, "Run deadline reached; accumulated results were kept (status PARTIAL).")
	}
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildCrawlConfig creates a Config from the config file and cobra flags.
// Precedence: defaults < config file < explicitly set flags.
func buildCrawlConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	configPathFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configPathFlag

	// Load the config file. If the user explicitly specified a path,
	// error if not found; otherwise silently proceed on defaults.
	configPath := config.FindConfigFile(configPathFlag)
	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.ApplyTo(cfg)
	} else if configPathFlag != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configPathFlag)
	}

	// Flags override the file only when explicitly set, so a file value
	// survives an unset flag's default.
	flagErr := func(name string, apply func() error) {
		if err == nil && cmd.Flags().Changed(name) {
			err = apply()
		}
	}

	flagErr("strategy", func() error {
		cfg.Strategy, err = cmd.Flags().GetString("strategy")
		return err
	})
	flagErr("sources", func() error {
		cfg.Sources, err = cmd.Flags().GetStringSlice("sources")
		return err
	})
	flagErr("keywords", func() error {
		cfg.Keywords, err = cmd.Flags().GetStringSlice("keywords")
		return err
	})
	flagErr("incremental", func() error {
		cfg.Incremental, err = cmd.Flags().GetBool("incremental")
		return err
	})
	flagErr("run-key", func() error {
		cfg.RunKey, err = cmd.Flags().GetString("run-key")
		return err
	})
	flagErr("page-size", func() error {
		cfg.PageSize, err = cmd.Flags().GetInt("page-size")
		return err
	})
	flagErr("days-back", func() error {
		cfg.DaysBack, err = cmd.Flags().GetInt("days-back")
		return err
	})
	flagErr("min-post-score", func() error {
		cfg.MinPostScore, err = cmd.Flags().GetInt("min-post-score")
		return err
	})
	flagErr("search-limit", func() error {
		cfg.SearchLimit, err = cmd.Flags().GetInt("search-limit")
		return err
	})
	flagErr("max-depth", func() error {
		cfg.MaxDepth, err = cmd.Flags().GetInt("max-depth")
		return err
	})
	flagErr("max-children", func() error {
		cfg.MaxChildren, err = cmd.Flags().GetInt("max-children")
		return err
	})
	flagErr("top-limit", func() error {
		cfg.TopLimit, err = cmd.Flags().GetInt("top-limit")
		return err
	})
	flagErr("min-comment-score", func() error {
		cfg.MinCommentScore, err = cmd.Flags().GetInt("min-comment-score")
		return err
	})
	flagErr("concurrency", func() error {
		cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
		return err
	})
	flagErr("requests-per-minute", func() error {
		cfg.RequestsPerMinute, err = cmd.Flags().GetInt("requests-per-minute")
		return err
	})
	flagErr("daily-ceiling", func() error {
		cfg.DailyCeiling, err = cmd.Flags().GetInt("daily-ceiling")
		return err
	})
	flagErr("deadline", func() error {
		cfg.Deadline, err = cmd.Flags().GetDuration("deadline")
		return err
	})
	flagErr("db-dir", func() error {
		cfg.DBDir, err = cmd.Flags().GetString("db-dir")
		return err
	})
	flagErr("no-db", func() error {
		cfg.NoDB, err = cmd.Flags().GetBool("no-db")
		return err
	})
	if err != nil {
		return nil, err
	}

	// Report flags exist on crawl but not on watch.
	if f := cmd.Flags().Lookup("markdown"); f != nil {
		cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
		if err != nil {
			return nil, err
		}
	}
	if f := cmd.Flags().Lookup("output"); f != nil {
		cfg.ReportFile, err = cmd.Flags().GetString("output")
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadCredentials reads the API credentials from the environment, honoring
// a .env file in the working directory.
func loadCredentials(cfg *config.Config) (reddit.Credentials, error) {
	// Best effort: a missing .env file is fine.
	_ = godotenv.Load()

	creds := reddit.Credentials{
		ClientID:     os.Getenv(envClientID),
		ClientSecret: os.Getenv(envClientSecret),
		UserAgent:    cfg.UserAgent,
	}
	if ua := os.Getenv(envUserAgent); ua != "" {
		creds.UserAgent = ua
	}

	if err := creds.Validate(); err != nil {
		return reddit.Credentials{}, fmt.Errorf(
			"missing credentials: set %s and %s (a .env file is honored): %w",
			envClientID, envClientSecret, err)
	}
	return creds, nil
}

// runCrawl wires the stack together and executes one crawl run.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*model.Batch, *model.CrawlRun, error) {
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, nil, err
	}

	// Storage: SQLite under the data directory, or in-memory with --no-db.
	var (
		store crawler.Store
		db    *database.CrawlDB
	)
	if cfg.NoDB {
		store = database.NewMemoryStore()
	} else {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		store = db
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// The daily allowance is shared across runs: prime the budget with
	// today's stored usage and write the new count back afterwards.
	budget := ratelimit.NewBudget(
		ratelimit.WithCeiling(cfg.RequestsPerMinute),
		ratelimit.WithDailyCeiling(cfg.DailyCeiling),
	)
	today := time.Now().UTC()
	if db != nil {
		used, err := db.DailyUsage(ctx, today.Format("2006-01-02"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read daily usage: %w", err)
		}
		budget.PrimeDailyUsage(today, used)
		logger.Debug("daily budget primed", "used", used, "ceiling", cfg.DailyCeiling)
	}

	// The fetcher's backoff notifications reach the crawler through this
	// closure; cr is assigned before any request can fire.
	var cr *crawler.Crawler
	fetcher := reddit.NewFetcher(budget,
		reddit.WithBackoffNotify(func(entering bool) {
			if cr != nil {
				cr.NotifyBackoff(entering)
			}
		}),
		reddit.WithFetcherLogger(logger),
	)

	client, err := reddit.NewClient(creds, fetcher, reddit.WithClientLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	cr, err = crawler.New(client, store,
		crawler.WithCrawlerLogger(logger),
		crawler.WithRunKey(cfg.RunKey),
		crawler.WithIncremental(cfg.Incremental),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithPageSize(cfg.PageSize),
		crawler.WithDaysBack(cfg.DaysBack),
		crawler.WithMinPostScore(cfg.MinPostScore),
		crawler.WithSearchLimit(cfg.SearchLimit),
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithMaxChildren(cfg.MaxChildren),
		crawler.WithTopLimit(cfg.TopLimit),
		crawler.WithMinCommentScore(cfg.MinCommentScore),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create crawler: %w", err)
	}

	runCtx := ctx
	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	fmt.Fprintf(os.Stderr, "Crawling %d communities (strategy: %s)...\n", len(cfg.Sources), cfg.Strategy)
	startTime := time.Now()

	batch, run, runErr := cr.Run(runCtx, model.Strategy(cfg.Strategy), cfg.Sources, cfg.Keywords)

	// Persist today's usage even when the run failed; requests were spent
	// either way.
	if db != nil {
		day, count := budget.DailyUsage()
		saveCtx := context.WithoutCancel(ctx)
		if err := db.SaveDailyUsage(saveCtx, day.UTC().Format("2006-01-02"), count); err != nil {
			logger.Error("failed to save daily usage", "error", err)
		}
	}

	if runErr != nil {
		return nil, nil, fmt.Errorf("crawl failed: %w", runErr)
	}

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "Crawl completed in %s: %d posts, %d comments\n\n",
		elapsed.Round(time.Millisecond), len(batch.Posts), batch.CommentTotal())

	return batch, run, nil
}

// outputBatch writes the batch in the requested format.
func outputBatch(stdout io.Writer, cfg *config.Config, jsonOut bool, batch *model.Batch) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// 0600: batches may quote non-public discussions.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	// JSON batch (the canonical document)
	if jsonOut || cfg.ReportFile != "" && !cfg.MarkdownReport {
		writer := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
		_, err := writer.Write(batch)
		return err
	}

	// Markdown run summary
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(batch)
		return err
	}

	// Human-readable summary (default)
	writer := report.NewSimpleWriter(output)
	_, err := writer.Write(batch)
	return err
}
