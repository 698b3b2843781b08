package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/bibsync/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResults() types.SyncResults {
	return types.SyncResults{
		"a": {
			Entry:   types.NewEntry("a", "article", map[string]string{"doi": "10.1/x"}),
			Outcome: types.MatchedOutcome(types.Record{}),
			Changed: []string{"doi", "year"},
		},
		"b": {
			Entry:   types.NewEntry("b", "article", nil),
			Outcome: types.NoMatchOutcome(),
		},
		"c": {
			Entry:   types.NewEntry("c", "article", nil),
			Outcome: types.FailedOutcome(types.FailureRateLimited, errors.New("429")),
		},
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := s.Record(ctx, Run{Source: "crossref", Input: "refs.bib", StartedAt: start, Duration: 1500 * time.Millisecond}, sampleResults())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("run id %q is not a UUID: %v", id, err)
	}

	runs, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Source != "crossref" || r.Input != "refs.bib" {
		t.Errorf("unexpected run %+v", r)
	}
	if !r.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", r.StartedAt, start)
	}
	if r.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v", r.Duration)
	}
	want := types.Summary{Matched: 1, Updated: 1, Unmatched: 1, Failed: 1}
	if r.Summary != want {
		t.Errorf("Summary = %+v, want %+v", r.Summary, want)
	}
}

func TestRecent_NewestFirstAndLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := Run{ID: string(rune('x' + i)), Source: "dblp", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if _, err := s.Record(ctx, run, types.SyncResults{}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "z" || runs[1].ID != "y" {
		t.Errorf("order = %s, %s; want z, y", runs[0].ID, runs[1].ID)
	}
}

func TestEntries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.Record(ctx, Run{Source: "openalex"}, sampleResults())
	if err != nil {
		t.Fatal(err)
	}

	entries, err := s.Entries(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Key != "a" || entries[0].Outcome != "matched" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if len(entries[0].Changed) != 2 || entries[0].Changed[0] != "doi" {
		t.Errorf("changed = %v", entries[0].Changed)
	}
	if entries[2].Outcome != "failed" || entries[2].Failure != "rate-limited" {
		t.Errorf("entry 2 = %+v", entries[2])
	}
}

func TestEntries_UnknownRun(t *testing.T) {
	s := testStore(t)
	_, err := s.Entries(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestRecord_DuplicateIDFails(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.Record(ctx, Run{ID: "same", Source: "crossref"}, sampleResults()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, Run{ID: "same", Source: "crossref"}, sampleResults()); err == nil {
		t.Error("expected error for duplicate run id")
	}
}

func TestCorruptRowsReportErrors(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.Record(ctx, Run{Source: "crossref"}, sampleResults())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.db.Exec(`UPDATE run_entries SET changed = '{not json' WHERE run_id = ? AND key = 'a'`, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Entries(ctx, id); err == nil {
		t.Error("expected error for undecodable changed fields")
	}

	if _, err := s.db.Exec(`UPDATE runs SET started_at = 'yesterday' WHERE id = ?`, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Recent(ctx, 5); err == nil {
		t.Error("expected error for unparsable started_at")
	}
}
