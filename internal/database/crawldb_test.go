package database

import (
	"context"
	"testing"

	"github.com/yike5460/commprobe/internal/model"
)

// openTestDB opens a fresh database in a temporary directory.
func openTestDB(t *testing.T) *CrawlDB {
	t.Helper()
	cdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = cdb.Close() })
	return cdb
}

// TestOpenRequiresExisting verifies opening without create fails on a
// missing database.
func TestOpenRequiresExisting(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
	if err == nil {
		t.Fatal("expected error for missing database")
	}
}

// TestContentRecordRoundTrip verifies save and load of content records.
func TestContentRecordRoundTrip(t *testing.T) {
	t.Parallel()

	cdb := openTestDB(t)
	ctx := context.Background()

	t.Run("missing record loads empty", func(t *testing.T) {
		rec, err := cdb.LoadRecord(ctx, "lawfirm")
		if err != nil {
			t.Fatalf("LoadRecord: %v", err)
		}
		if rec.Len() != 0 {
			t.Errorf("expected empty record, got %d items", rec.Len())
		}
		if rec.Digests == nil {
			t.Error("expected usable digest map")
		}
	})

	t.Run("round trip preserves digests", func(t *testing.T) {
		rec := model.NewContentRecord()
		rec.Set("p1", "digest-a")
		rec.Set("c1", "digest-b")

		if err := cdb.SaveRecord(ctx, "lawfirm", rec); err != nil {
			t.Fatalf("SaveRecord: %v", err)
		}

		loaded, err := cdb.LoadRecord(ctx, "lawfirm")
		if err != nil {
			t.Fatalf("LoadRecord: %v", err)
		}
		if got, _ := loaded.Digest("p1"); got != "digest-a" {
			t.Errorf("expected digest-a, got %q", got)
		}
		if loaded.Len() != 2 {
			t.Errorf("expected 2 items, got %d", loaded.Len())
		}
	})

	t.Run("save replaces prior record", func(t *testing.T) {
		rec := model.NewContentRecord()
		rec.Set("p1", "digest-c")

		if err := cdb.SaveRecord(ctx, "lawfirm", rec); err != nil {
			t.Fatalf("SaveRecord: %v", err)
		}
		loaded, err := cdb.LoadRecord(ctx, "lawfirm")
		if err != nil {
			t.Fatalf("LoadRecord: %v", err)
		}
		if got, _ := loaded.Digest("p1"); got != "digest-c" {
			t.Errorf("expected digest-c after replace, got %q", got)
		}
		if loaded.Len() != 1 {
			t.Errorf("expected replaced record with 1 item, got %d", loaded.Len())
		}
	})
}

// TestBatchHistory verifies batch storage, listing, and retrieval.
func TestBatchHistory(t *testing.T) {
	t.Parallel()

	cdb := openTestDB(t)
	ctx := context.Background()

	batch := func(runID string) *model.Batch {
		return &model.Batch{
			Posts: []*model.Post{{
				ID: "p1", Source: "LawFirm", Title: "supio rollout",
				Comments: []*model.CommentNode{{ID: "c1", PostID: "p1", Body: "works"}},
			}},
			Metadata: model.RunMetadata{
				RunID:    runID,
				Mode:     "full",
				Strategy: model.StrategyBrowse,
				Status:   model.StatusDone,
			},
		}
	}

	if err := cdb.SaveBatch(ctx, batch("run-1")); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if err := cdb.SaveBatch(ctx, batch("run-2")); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	t.Run("list runs newest first", func(t *testing.T) {
		runs, err := cdb.ListRuns(ctx, 0)
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[0].RunID != "run-2" {
			t.Errorf("expected newest run first, got %s", runs[0].RunID)
		}
		if runs[0].Posts != 1 || runs[0].Comments != 1 {
			t.Errorf("unexpected counts %+v", runs[0])
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		runs, err := cdb.ListRuns(ctx, 1)
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run, got %d", len(runs))
		}
	})

	t.Run("get batch by run id", func(t *testing.T) {
		got, err := cdb.GetBatch(ctx, "run-1")
		if err != nil {
			t.Fatalf("GetBatch: %v", err)
		}
		if got == nil || len(got.Posts) != 1 || got.Posts[0].ID != "p1" {
			t.Errorf("unexpected batch %+v", got)
		}
	})

	t.Run("unknown run id returns nil", func(t *testing.T) {
		got, err := cdb.GetBatch(ctx, "run-9")
		if err != nil {
			t.Fatalf("GetBatch: %v", err)
		}
		if got != nil {
			t.Error("expected nil batch for unknown run")
		}
	})

	t.Run("latest runs", func(t *testing.T) {
		ids, err := cdb.LatestRuns(ctx, 2)
		if err != nil {
			t.Fatalf("LatestRuns: %v", err)
		}
		if len(ids) != 2 || ids[0] != "run-2" || ids[1] != "run-1" {
			t.Errorf("unexpected run ids %v", ids)
		}
	})
}

// TestDailyUsage verifies the per-day request counter upsert.
func TestDailyUsage(t *testing.T) {
	t.Parallel()

	cdb := openTestDB(t)
	ctx := context.Background()

	n, err := cdb.DailyUsage(ctx, "2026-08-27")
	if err != nil {
		t.Fatalf("DailyUsage: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 for unknown day, got %d", n)
	}

	if err := cdb.SaveDailyUsage(ctx, "2026-08-27", 120); err != nil {
		t.Fatalf("SaveDailyUsage: %v", err)
	}
	if err := cdb.SaveDailyUsage(ctx, "2026-08-27", 150); err != nil {
		t.Fatalf("SaveDailyUsage: %v", err)
	}

	n, err = cdb.DailyUsage(ctx, "2026-08-27")
	if err != nil {
		t.Fatalf("DailyUsage: %v", err)
	}
	if n != 150 {
		t.Errorf("expected upserted count 150, got %d", n)
	}
}

// TestMemoryStore verifies the in-memory store round trip.
func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	rec, err := store.LoadRecord(ctx, "k")
	if err != nil || rec.Len() != 0 {
		t.Fatalf("expected empty record, got %v %v", rec, err)
	}

	rec.Set("p1", "dg")
	if err := store.SaveRecord(ctx, "k", rec); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	loaded, err := store.LoadRecord(ctx, "k")
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if got, _ := loaded.Digest("p1"); got != "dg" {
		t.Errorf("expected stored digest, got %q", got)
	}

	if err := store.SaveBatch(ctx, &model.Batch{}); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if len(store.Batches()) != 1 {
		t.Error("expected 1 stored batch")
	}
}
