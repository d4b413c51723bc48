package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/yike5460/commprobe/internal/model"
)

// FileName is the database file created under the data directory.
const FileName = "commprobe.db"

// CrawlDB provides SQLite-based storage for crawl state and run history.
// It manages connection pooling and implements the crawler's Store.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. Recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error
// is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Content records hold the per-item digest map an incremental run
	-- compares against, one row per run key.
	CREATE TABLE IF NOT EXISTS content_records (
		run_key TEXT PRIMARY KEY,
		record_json TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Crawl runs store each run's output batch as JSON for history and
	-- diffing.
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status TEXT NOT NULL,
		mode TEXT NOT NULL,
		strategy TEXT NOT NULL,
		posts INTEGER NOT NULL,
		comments INTEGER NOT NULL,
		batch_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON crawl_runs(timestamp);

	-- Daily request usage, one row per UTC day, so scheduled runs share
	-- the provider's daily allowance.
	CREATE TABLE IF NOT EXISTS rate_usage (
		day TEXT PRIMARY KEY,
		requests INTEGER NOT NULL
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// LoadRecord returns the content record stored under runKey, or an empty
// record when none exists yet.
func (cdb *CrawlDB) LoadRecord(ctx context.Context, runKey string) (model.ContentRecord, error) {
	var recordJSON string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT record_json FROM content_records WHERE run_key = ?`, runKey,
	).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewContentRecord(), nil
	}
	if err != nil {
		return model.ContentRecord{}, fmt.Errorf("failed to load content record: %w", err)
	}

	var rec model.ContentRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return model.ContentRecord{}, fmt.Errorf("failed to parse content record: %w", err)
	}
	if rec.Digests == nil {
		rec = model.NewContentRecord()
	}
	return rec, nil
}

// SaveRecord stores the content record under runKey, replacing any prior
// one.
func (cdb *CrawlDB) SaveRecord(ctx context.Context, runKey string, rec model.ContentRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize content record: %w", err)
	}

	_, err = cdb.db.ExecContext(ctx, `
	INSERT INTO content_records (run_key, record_json, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(run_key) DO UPDATE SET
		record_json = excluded.record_json,
		updated_at = CURRENT_TIMESTAMP
	`, runKey, string(recordJSON))
	if err != nil {
		return fmt.Errorf("failed to save content record: %w", err)
	}
	return nil
}

// SaveBatch stores a run's output batch in the history table.
func (cdb *CrawlDB) SaveBatch(ctx context.Context, batch *model.Batch) error {
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to serialize batch: %w", err)
	}

	md := batch.Metadata
	_, err = cdb.db.ExecContext(ctx, `
	INSERT INTO crawl_runs (run_id, status, mode, strategy, posts, comments, batch_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		md.RunID,
		string(md.Status),
		md.Mode,
		string(md.Strategy),
		len(batch.Posts),
		batch.CommentTotal(),
		string(batchJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

// RunSummary describes one stored run without its batch payload.
type RunSummary struct {
	// ID is the row identifier in the history table.
	ID int64

	// RunID is the run's UUID.
	RunID string

	// Timestamp is when the batch was stored.
	Timestamp time.Time

	// Status, Mode, and Strategy echo the run metadata.
	Status   string
	Mode     string
	Strategy string

	// Posts and Comments count the batch contents.
	Posts    int
	Comments int
}

// ListRuns returns stored runs, newest first, up to limit (0 = all).
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, run_id, timestamp, status, mode, strategy, posts, comments
	FROM crawl_runs
	ORDER BY timestamp DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var s RunSummary
		var timestamp string
		if err := rows.Scan(&s.ID, &s.RunID, &timestamp, &s.Status, &s.Mode, &s.Strategy, &s.Posts, &s.Comments); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		s.Timestamp = parseTimestamp(timestamp)
		results = append(results, s)
	}
	return results, rows.Err()
}

// GetBatch retrieves a stored batch by run UUID. Returns nil when the run
// is unknown.
func (cdb *CrawlDB) GetBatch(ctx context.Context, runID string) (*model.Batch, error) {
	var batchJSON string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT batch_json FROM crawl_runs WHERE run_id = ?`, runID,
	).Scan(&batchJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	var batch model.Batch
	if err := json.Unmarshal([]byte(batchJSON), &batch); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	return &batch, nil
}

// LatestRuns returns the run UUIDs of the newest n stored runs, newest
// first.
func (cdb *CrawlDB) LatestRuns(ctx context.Context, n int) ([]string, error) {
	summaries, err := cdb.ListRuns(ctx, n)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.RunID
	}
	return ids, nil
}

// DailyUsage returns the stored request count for the given UTC day
// (formatted 2006-01-02). Unknown days return zero.
func (cdb *CrawlDB) DailyUsage(ctx context.Context, day string) (int, error) {
	var requests int
	err := cdb.db.QueryRowContext(ctx,
		`SELECT requests FROM rate_usage WHERE day = ?`, day,
	).Scan(&requests)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get daily usage: %w", err)
	}
	return requests, nil
}

// SaveDailyUsage stores the request count for the given UTC day.
func (cdb *CrawlDB) SaveDailyUsage(ctx context.Context, day string, requests int) error {
	_, err := cdb.db.ExecContext(ctx, `
	INSERT INTO rate_usage (day, requests) VALUES (?, ?)
	ON CONFLICT(day) DO UPDATE SET requests = excluded.requests
	`, day, requests)
	if err != nil {
		return fmt.Errorf("failed to save daily usage: %w", err)
	}
	return nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending on
// configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
