package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	entries := []Entry{
		{Player: "org.mpris.MediaPlayer2.vlc", Status: "Playing", Action: "inhibit", OK: true, Time: time.Unix(1000, 0)},
		{Player: "org.mpris.MediaPlayer2.vlc", Status: "Paused", Action: "restore", OK: true, Time: time.Unix(2000, 0)},
		{Player: "", Status: "Unknown", Action: "restore", OK: false, Detail: "write rejected", Time: time.Unix(3000, 0)},
	}
	for _, e := range entries {
		if _, err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(Recent) = %d, want 3", len(got))
	}

	// Newest first.
	if got[0].Status != "Unknown" || got[0].OK || got[0].Detail != "write rejected" {
		t.Errorf("unexpected newest entry: %+v", got[0])
	}
	if got[2].Action != "inhibit" {
		t.Errorf("oldest entry action = %q, want inhibit", got[2].Action)
	}
}

func TestRecentLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := j.Record(ctx, Entry{Status: "Playing", Action: "inhibit", OK: true}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(Recent) = %d, want 2", len(got))
	}
}

func TestRecordDefaultsTime(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Minute)
	if _, err := j.Record(ctx, Entry{Status: "Playing", Action: "inhibit", OK: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(Recent) = %d, want 1", len(got))
	}
	if got[0].Time.Before(before) {
		t.Errorf("entry time %v not defaulted to now", got[0].Time)
	}
}

func TestPrune(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	old := Entry{Status: "Playing", Action: "inhibit", OK: true, Time: time.Now().Add(-48 * time.Hour)}
	fresh := Entry{Status: "Paused", Action: "restore", OK: true}
	if _, err := j.Record(ctx, old); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := j.Record(ctx, fresh); err != nil {
		t.Fatalf("Record: %v", err)
	}

	deleted, err := j.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	count, err := j.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
