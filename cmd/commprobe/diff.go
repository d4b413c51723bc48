package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yike5460/commprobe/internal/config"
	"github.com/yike5460/commprobe/internal/database"
	"github.com/yike5460/commprobe/internal/digest"
	"github.com/yike5460/commprobe/internal/model"
)

// Change direction labels for the diff summary.
const (
	activityDirectionUp        = "increased"
	activityDirectionDown      = "decreased"
	activityDirectionUnchanged = "unchanged"
)

// NewDiffCmd creates the diff command.
// This command compares crawl batches stored in the run history.
func NewDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [older-run-id] [newer-run-id]",
		Short: "Compare two crawl runs from the history",
		Long: `Diff displays differences between two stored crawl batches.

It shows which posts appeared, disappeared, or changed between the runs,
and how keyword mention counts moved. Without arguments, the latest two
runs are compared.

Examples:
  # Compare the latest two runs
  commprobe diff

  # List stored runs with their IDs
  commprobe diff --list

  # Compare two specific runs
  commprobe diff 6f3a... 9c1b...

  # Output the comparison in JSON format
  commprobe diff --json`,
		Args: cobra.MaximumNArgs(2),
		RunE: runDiffCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List stored runs instead of comparing")
	cmd.Flags().IntP("limit", "n", 20,
		"Number of runs to show with --list (0 = all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runDiffCmd executes the diff command.
func runDiffCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// The history is read-only here: do not create a fresh database just
	// to report that it is empty.
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no run history found (run 'commprobe crawl' first): %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	listRuns, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listRuns {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		return listRunHistory(ctx, cmd, db, limit)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	var olderID, newerID string
	switch len(args) {
	case 2:
		olderID, newerID = args[0], args[1]
	case 0:
		ids, err := db.LatestRuns(ctx, 2)
		if err != nil {
			return fmt.Errorf("failed to read run history: %w", err)
		}
		if len(ids) < 2 {
			return fmt.Errorf("at least 2 stored runs are required for comparison (found %d)", len(ids))
		}
		newerID, olderID = ids[0], ids[1]
	default:
		return fmt.Errorf("provide both run ids or none (use --list to see stored runs)")
	}

	return runBatchDiff(ctx, cmd, db, olderID, newerID, jsonOutput)
}

// listRunHistory lists stored runs, newest first.
func listRunHistory(ctx context.Context, cmd *cobra.Command, db *database.CrawlDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No stored runs found.")
		fmt.Fprintln(out, "\nUse 'commprobe crawl' to run a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Stored runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-20s  %-8s  %-12s  %-6s  %s\n",
		"Run ID", "Date", "Status", "Mode", "Posts", "Comments")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 96))

	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-20s  %-8s  %-12s  %-6d  %d\n",
			r.RunID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Status,
			r.Mode,
			r.Posts,
			r.Comments,
		)
	}

	fmt.Fprintln(out, "\nUse 'commprobe diff <older-id> <newer-id>' to compare two runs.")
	return nil
}

// DiffResult holds the result of comparing two stored batches.
type DiffResult struct {
	// OlderRun and NewerRun identify the compared runs.
	OlderRun string `json:"older_run"`
	NewerRun string `json:"newer_run"`

	// NewPosts are post titles present only in the newer batch.
	NewPosts []PostRef `json:"new_posts,omitempty"`

	// DroppedPosts are post titles present only in the older batch.
	DroppedPosts []PostRef `json:"dropped_posts,omitempty"`

	// ChangedPosts are posts present in both batches whose digest moved
	// (edit, score bucket change, or comment activity).
	ChangedPosts []PostRef `json:"changed_posts,omitempty"`

	// UnchangedCount is the number of posts with identical digests.
	UnchangedCount int `json:"unchanged_count"`

	// MentionDeltas maps keyword to the mention count change.
	MentionDeltas map[string]int `json:"mention_deltas,omitempty"`

	// Direction summarizes overall mention activity movement.
	Direction string `json:"direction"`
}

// PostRef identifies one post in a diff listing.
type PostRef struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Title  string `json:"title"`
}

// runBatchDiff loads both batches and prints their comparison.
func runBatchDiff(ctx context.Context, cmd *cobra.Command, db *database.CrawlDB, olderID, newerID string, jsonOutput bool) error {
	older, err := db.GetBatch(ctx, olderID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", olderID, err)
	}
	if older == nil {
		return fmt.Errorf("run %s not found (use --list to see stored runs)", olderID)
	}

	newer, err := db.GetBatch(ctx, newerID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", newerID, err)
	}
	if newer == nil {
		return fmt.Errorf("run %s not found (use --list to see stored runs)", newerID)
	}

	result := diffBatches(older, newer)

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	return outputDiffText(cmd, result)
}

// diffBatches compares two batches post by post using content digests.
func diffBatches(older, newer *model.Batch) *DiffResult {
	result := &DiffResult{
		OlderRun: older.Metadata.RunID,
		NewerRun: newer.Metadata.RunID,
	}

	olderByID := make(map[string]*model.Post, len(older.Posts))
	for _, p := range older.Posts {
		olderByID[p.ID] = p
	}
	newerByID := make(map[string]*model.Post, len(newer.Posts))
	for _, p := range newer.Posts {
		newerByID[p.ID] = p
	}

	for _, p := range newer.Posts {
		prev, ok := olderByID[p.ID]
		if !ok {
			result.NewPosts = append(result.NewPosts, postRef(p))
			continue
		}
		if digest.ForPost(prev) != digest.ForPost(p) || prev.CommentTotal() != p.CommentTotal() {
			result.ChangedPosts = append(result.ChangedPosts, postRef(p))
		} else {
			result.UnchangedCount++
		}
	}

	for _, p := range older.Posts {
		if _, ok := newerByID[p.ID]; !ok {
			result.DroppedPosts = append(result.DroppedPosts, postRef(p))
		}
	}

	result.MentionDeltas = mentionDeltas(older.Metadata.Mentions, newer.Metadata.Mentions)
	result.Direction = mentionDirection(result.MentionDeltas)

	return result
}

// postRef builds the diff listing entry for a post.
func postRef(p *model.Post) PostRef {
	return PostRef{ID: p.ID, Source: p.Source, Title: p.Title}
}

// mentionDeltas computes per-keyword mention count changes.
// Keywords absent from both maps are omitted; a zero delta survives only
// when the keyword appears in at least one batch.
func mentionDeltas(older, newer map[string]int) map[string]int {
	deltas := make(map[string]int)
	for k, n := range newer {
		deltas[k] = n - older[k]
	}
	for k, n := range older {
		if _, ok := newer[k]; !ok {
			deltas[k] = -n
		}
	}
	if len(deltas) == 0 {
		return nil
	}
	return deltas
}

// mentionDirection summarizes the net mention movement.
func mentionDirection(deltas map[string]int) string {
	net := 0
	for _, d := range deltas {
		net += d
	}
	switch {
	case net > 0:
		return activityDirectionUp
	case net < 0:
		return activityDirectionDown
	default:
		return activityDirectionUnchanged
	}
}

// outputDiffText prints the comparison in human-readable form.
func outputDiffText(cmd *cobra.Command, result *DiffResult) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Run Comparison")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nOlder run: %s\n", result.OlderRun)
	fmt.Fprintf(out, "Newer run: %s\n", result.NewerRun)
	fmt.Fprintf(out, "\nMention activity: %s\n", result.Direction)

	if len(result.NewPosts) > 0 {
		fmt.Fprintf(out, "\nNew Posts (%d):\n", len(result.NewPosts))
		for _, p := range result.NewPosts {
			fmt.Fprintf(out, "  [+] [%s] %s\n", p.Source, p.Title)
		}
	}

	if len(result.ChangedPosts) > 0 {
		fmt.Fprintf(out, "\nChanged Posts (%d):\n", len(result.ChangedPosts))
		for _, p := range result.ChangedPosts {
			fmt.Fprintf(out, "  [~] [%s] %s\n", p.Source, p.Title)
		}
	}

	if len(result.DroppedPosts) > 0 {
		fmt.Fprintf(out, "\nDropped Posts (%d):\n", len(result.DroppedPosts))
		for _, p := range result.DroppedPosts {
			fmt.Fprintf(out, "  [-] [%s] %s\n", p.Source, p.Title)
		}
	}

	if len(result.MentionDeltas) > 0 {
		fmt.Fprintln(out, "\nMention Changes:")
		keys := make([]string, 0, len(result.MentionDeltas))
		for k := range result.MentionDeltas {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %-30s %s\n", k, formatDelta(result.MentionDeltas[k]))
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d posts\n", result.UnchangedCount)
	}

	return nil
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
