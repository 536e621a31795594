package analytics

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordCommand(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	for range 3 {
		if err := db.RecordCommand(ctx, "Open Chrome", true, 120); err != nil {
			t.Fatalf("RecordCommand: %v", err)
		}
	}
	if err := db.RecordCommand(ctx, "open chrome", false, 300); err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}
	if err := db.RecordCommand(ctx, "close tab", true, 80); err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}

	top, err := db.TopCommands(ctx, 10)
	if err != nil {
		t.Fatalf("TopCommands: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	if top[0].Command != "open chrome" || top[0].Count != 4 {
		t.Errorf("top[0] = %+v, want open chrome x4", top[0])
	}
	if top[0].SuccessCount != 3 || top[0].FailCount != 1 {
		t.Errorf("success/fail = %d/%d, want 3/1", top[0].SuccessCount, top[0].FailCount)
	}
	wantAvg := (120.0*3 + 300) / 4
	if diff := top[0].AvgResponseMS - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AvgResponseMS = %v, want %v", top[0].AvgResponseMS, wantAvg)
	}
}

func TestPriorityBoost(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	for range 10 {
		if err := db.RecordCommand(ctx, "open chrome", true, 100); err != nil {
			t.Fatal(err)
		}
	}
	for range 5 {
		if err := db.RecordCommand(ctx, "close tab", true, 100); err != nil {
			t.Fatal(err)
		}
	}

	boost, err := db.PriorityBoost(ctx, "open chrome")
	if err != nil {
		t.Fatalf("PriorityBoost: %v", err)
	}
	if diff := boost - maxPriorityBoost; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("boost for most used = %v, want %v", boost, maxPriorityBoost)
	}

	boost, err = db.PriorityBoost(ctx, "close tab")
	if err != nil {
		t.Fatalf("PriorityBoost: %v", err)
	}
	if diff := boost - 0.1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("boost for half-used = %v, want 0.1", boost)
	}

	boost, err = db.PriorityBoost(ctx, "never seen")
	if err != nil {
		t.Fatalf("PriorityBoost: %v", err)
	}
	if boost != 0 {
		t.Errorf("boost for unknown command = %v, want 0", boost)
	}
}

func TestFailureProne(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	// 3 uses, 2 failures.
	for i := range 3 {
		if err := db.RecordCommand(ctx, "flaky command", i == 0, 100); err != nil {
			t.Fatal(err)
		}
	}
	// Fails every time but only used twice, below the sample floor.
	for range 2 {
		if err := db.RecordCommand(ctx, "rare failure", false, 100); err != nil {
			t.Fatal(err)
		}
	}
	for range 5 {
		if err := db.RecordCommand(ctx, "reliable", true, 100); err != nil {
			t.Fatal(err)
		}
	}

	prone, err := db.FailureProne(ctx, 5)
	if err != nil {
		t.Fatalf("FailureProne: %v", err)
	}
	if len(prone) != 2 {
		t.Fatalf("len(prone) = %d, want 2 (rare failure below sample floor)", len(prone))
	}
	if prone[0].Command != "flaky command" {
		t.Errorf("prone[0] = %+v, want flaky command first", prone[0])
	}
}

func TestMisrecognitions(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	for range 2 {
		if err := db.RecordMisrecognition(ctx, "open crome", "open chrome"); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.RecordMisrecognition(ctx, "open crome", "open gnome"); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordMisrecognition(ctx, "same", "same"); err != nil {
		t.Fatal(err)
	}

	patterns, err := db.MisrecognitionPatterns(ctx)
	if err != nil {
		t.Fatalf("MisrecognitionPatterns: %v", err)
	}
	fixes := patterns["open crome"]
	if len(fixes) != 2 {
		t.Fatalf("fixes = %v, want 2 entries", fixes)
	}
	if fixes[0].Correct != "open chrome" || fixes[0].Count != 2 {
		t.Errorf("fixes[0] = %+v, want open chrome x2 first", fixes[0])
	}
	if _, ok := patterns["same"]; ok {
		t.Error("identical pair should not be recorded")
	}
}

func TestSessionsAndSummary(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.StartSession(ctx); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := db.RecordCommand(ctx, "open chrome", true, 100); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordCommand(ctx, "open chrome", false, 200); err != nil {
		t.Fatal(err)
	}
	if err := db.EndSession(ctx); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	s, err := db.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.TotalCommands != 2 || s.UniqueCommands != 1 {
		t.Errorf("totals = %d/%d, want 2/1", s.TotalCommands, s.UniqueCommands)
	}
	if s.SuccessRate != 50 || s.FailureRate != 50 {
		t.Errorf("rates = %v/%v, want 50/50", s.SuccessRate, s.FailureRate)
	}
	if s.AvgResponseMS != 150 {
		t.Errorf("AvgResponseMS = %v, want 150", s.AvgResponseMS)
	}
	if s.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want 1", s.TotalSessions)
	}
}

func TestPeakHours(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	for range 3 {
		if err := db.RecordCommand(ctx, "open chrome", true, 100); err != nil {
			t.Fatal(err)
		}
	}
	hours, err := db.PeakHours(ctx, 3)
	if err != nil {
		t.Fatalf("PeakHours: %v", err)
	}
	if len(hours) != 1 {
		t.Fatalf("len(hours) = %d, want 1 (all records in the current hour)", len(hours))
	}
	if hours[0].Count != 3 {
		t.Errorf("count = %d, want 3", hours[0].Count)
	}
}
