package engine

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/config"
	"github.com/talgya/isle-planner/internal/persistence"
	"github.com/talgya/isle-planner/internal/session"
	"github.com/talgya/isle-planner/internal/snapshot"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	mats := []catalog.Material{{Name: "Gem", Rare: true, Value: 20}, {Name: "Sand"}}
	items := []catalog.Item{
		{Name: "Amber", BaseValue: 100, CraftHours: 4, Categories: []string{"x"},
			Materials: []catalog.MaterialQty{{Material: 0, Qty: 1}}},
		{Name: "Bell", BaseValue: 50, CraftHours: 4, Categories: []string{"x"},
			Materials: []catalog.MaterialQty{{Material: 1, Qty: 2}}},
		{Name: "Cup", BaseValue: 70, CraftHours: 6, Categories: []string{"x"},
			Materials: []catalog.MaterialQty{{Material: 1, Qty: 1}}},
	}
	cat, err := catalog.New(items, mats)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Workshops = 1
	cfg.SlotsPerWorkshop = 2
	cfg.Suggestions = 3
	cfg.LookaheadDays = 1
	return cfg
}

// testSnap has Cup peaking today with unknown strength.
func testSnap(day int) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Day:           day,
		Workshops:     2,
		WorkshopBonus: 100,
		Items: []snapshot.ItemReading{
			{Item: 0, Popularity: snapshot.PopularityAverage, Supply: snapshot.SupplySufficient, Shift: snapshot.ShiftNone, PeakDay: -1},
			{Item: 1, Popularity: snapshot.PopularityAverage, Supply: snapshot.SupplySufficient, Shift: snapshot.ShiftNone, PeakDay: -1},
			{Item: 2, Popularity: snapshot.PopularityAverage, Supply: snapshot.SupplySufficient, Shift: snapshot.ShiftNone, PeakDay: day},
		},
	}
}

type countingReader struct {
	snap  *snapshot.Snapshot
	reads int
}

func (r *countingReader) Read(ctx context.Context) (*snapshot.Snapshot, error) {
	r.reads++
	return r.snap, nil
}

func openStore(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newPlanner(t *testing.T, cfg config.Config, reader snapshot.Reader, store Store) *Planner {
	t.Helper()
	p, err := New(context.Background(), cfg, testCatalog(t), reader, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewStartsSessionAndPersists(t *testing.T) {
	store := openStore(t)
	p := newPlanner(t, testConfig(), &countingReader{snap: testSnap(1)}, store)

	st := p.Status()
	if st.Totals.Day != 1 || st.Layout.Workshops != 1 || st.Layout.Slots != 2 {
		t.Fatalf("unexpected status %+v", st)
	}
	if !slices.Equal(st.Pending, []string{"Cup"}) {
		t.Errorf("expected Cup pending a hint, got %v", st.Pending)
	}
	id, ok := store.CurrentSession()
	if !ok || id != st.Session {
		t.Fatalf("store does not point at the new session: %v %v", id, ok)
	}
	if _, err := store.LoadSession(id); err != nil {
		t.Fatalf("session was not saved: %v", err)
	}
}

func TestLayoutFromSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Workshops = 0
	p := newPlanner(t, cfg, &countingReader{snap: testSnap(1)}, openStore(t))
	if got := p.Status().Layout.Workshops; got != 2 {
		t.Errorf("expected the snapshot's 2 workshops, got %d", got)
	}
}

func TestSolveCommitPersists(t *testing.T) {
	store := openStore(t)
	p := newPlanner(t, testConfig(), &countingReader{snap: testSnap(1)}, store)

	days, err := p.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(days) != 2 || days[0].Day != 1 || !days[1].Projected {
		t.Fatalf("expected today plus one projected day, got %+v", days)
	}
	if got := p.Schedule(); len(got) != 2 {
		t.Errorf("Schedule should return the cached days, got %d", len(got))
	}

	best, err := p.Suggestion(1, 1)
	if err != nil {
		t.Fatalf("Suggestion: %v", err)
	}
	sum, err := p.Commit(1, best.Key)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if sum.Key != best.Key || sum.Net != best.Net {
		t.Errorf("summary does not match the committed suggestion: %+v", sum)
	}

	rec, err := store.LoadSession(p.Status().Session)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Day != 2 || len(rec.Summaries) != 1 {
		t.Errorf("commit was not persisted: day %d, %d summaries", rec.Day, len(rec.Summaries))
	}
	events, _ := p.Events(10)
	if len(events) == 0 || events[0].Category != "commit" {
		t.Errorf("expected a commit event first, got %+v", events)
	}
}

func TestCommitRejectsBadKey(t *testing.T) {
	p := newPlanner(t, testConfig(), &countingReader{snap: testSnap(1)}, openStore(t))
	if _, err := p.Solve(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Commit(1, "not a key"); !errors.Is(err, session.ErrInvalidCommitment) {
		t.Errorf("expected ErrInvalidCommitment, got %v", err)
	}
	if _, err := p.Suggestion(1, 99); !errors.Is(err, ErrNoSuggestion) {
		t.Errorf("expected ErrNoSuggestion, got %v", err)
	}
}

func TestResumeFromStore(t *testing.T) {
	store := openStore(t)
	reader := &countingReader{snap: testSnap(1)}
	first := newPlanner(t, testConfig(), reader, store)
	if _, err := first.Stub(1, 10, 300); err != nil {
		t.Fatalf("Stub: %v", err)
	}

	second := newPlanner(t, testConfig(), reader, store)
	st := second.Status()
	if st.Session != first.Status().Session {
		t.Fatalf("expected the stored session to resume")
	}
	if st.Totals.Day != 2 || st.Totals.Groove != 10 || st.Totals.Gross != 300 {
		t.Errorf("resumed totals wrong: %+v", st.Totals)
	}
}

func TestSolveResyncsOncePerDay(t *testing.T) {
	reader := &countingReader{snap: testSnap(1)}
	p := newPlanner(t, testConfig(), reader, openStore(t))
	ctx := context.Background()

	if _, err := p.Solve(ctx); err != nil {
		t.Fatal(err)
	}
	if reader.reads != 1 {
		t.Fatalf("start-of-day snapshot should be reused, got %d reads", reader.reads)
	}
	if _, err := p.Stub(1, 0, 0); err != nil {
		t.Fatal(err)
	}
	before := p.sess.State()

	// The reader still reports day 1, so day 2 keeps the projected market.
	if _, err := p.Solve(ctx); err != nil {
		t.Fatalf("Solve on day 2: %v", err)
	}
	if _, err := p.Solve(ctx); err != nil {
		t.Fatal(err)
	}
	if reader.reads != 2 {
		t.Errorf("expected one re-read for day 2, got %d reads", reader.reads)
	}
	if !reflect.DeepEqual(p.sess.State(), before) {
		t.Errorf("stale snapshot must not replace the market")
	}

	if err := p.Hint("Cup", false); err != nil {
		t.Fatal(err)
	}
	reader.snap = testSnap(2)
	if err := p.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := p.sess.Pending(); len(got) != 0 {
		t.Errorf("recorded hint should be reapplied to the fresh snapshot, pending %v", got)
	}
	events, _ := p.Events(1)
	if len(events) != 1 || events[0].Category != "snapshot" {
		t.Errorf("expected a snapshot event, got %+v", events)
	}
}

func TestSyntheticSnapshotKeepsCommittedMarket(t *testing.T) {
	reader := &snapshot.SyntheticReader{Catalog: testCatalog(t), Seed: 11}
	store := openStore(t)
	p := newPlanner(t, testConfig(), reader, store)
	ctx := context.Background()

	for day := range 2 {
		if _, err := p.Solve(ctx); err != nil {
			t.Fatalf("Solve day %d: %v", day, err)
		}
		best, err := p.Suggestion(day, 1)
		if err != nil {
			t.Fatalf("Suggestion day %d: %v", day, err)
		}
		before := p.sess.State()
		if _, err := p.Commit(day, best.Key); err != nil {
			t.Fatalf("Commit day %d: %v", day, err)
		}
		if day == 0 {
			continue
		}
		if len(best.Lines) == 0 {
			t.Fatalf("expected crafts on day 1, got %s", best.Key)
		}
		crafted := best.Lines[0].Item
		committed := p.sess.State()
		if !(committed.Entries[crafted].Supply > before.Entries[crafted].Supply) {
			t.Fatalf("commit should add supply for item %d", crafted)
		}

		if _, err := p.Solve(ctx); err != nil {
			t.Fatalf("Solve day 2: %v", err)
		}
		if !reflect.DeepEqual(p.sess.State(), committed) {
			t.Errorf("item %d: supply %v after commit, %v after the next solve",
				crafted, committed.Entries[crafted].Supply, p.sess.State().Entries[crafted].Supply)
		}

		resumed := newPlanner(t, testConfig(), reader, store)
		if _, err := resumed.Solve(ctx); err != nil {
			t.Fatalf("Solve after resume: %v", err)
		}
		if got := resumed.sess.State().Entries[crafted].Supply; math.Abs(got-committed.Entries[crafted].Supply) > 1e-9 {
			t.Errorf("resumed session lost the committed supply: %v", got)
		}
	}
}

func TestHint(t *testing.T) {
	p := newPlanner(t, testConfig(), &countingReader{snap: testSnap(1)}, openStore(t))
	if err := p.Hint("Saucer", true); !errors.Is(err, session.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if err := p.Hint("cup", true); err != nil {
		t.Fatalf("Hint: %v", err)
	}
	if got := p.Status().Pending; len(got) != 0 {
		t.Errorf("hint should resolve the pending item, got %v", got)
	}
}

func TestPresentHidesKeywords(t *testing.T) {
	cfg := testConfig()
	cfg.HiddenKeywords = []string{"amber"}
	cfg.ShowNet = false
	p := newPlanner(t, cfg, &countingReader{snap: testSnap(1)}, openStore(t))
	days, err := p.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	views := p.Present(days)
	today := views[0]
	if today.Hidden+len(today.Suggestions) != len(days[0].Suggestions) {
		t.Fatalf("hidden plus shown should cover every suggestion: %+v", today)
	}
	for _, s := range today.Suggestions {
		for _, row := range s.Workshops {
			for _, name := range row {
				if strings.EqualFold(name, "Amber") {
					t.Errorf("hidden product shown in %s", s.Key)
				}
			}
		}
		if s.Value != s.Gross {
			t.Errorf("show_net off should display gross")
		}
		if s.Key != days[0].Suggestions[s.Rank-1].Key {
			t.Errorf("rank %d does not point at the original suggestion", s.Rank)
		}
	}
}

func TestWatcherPollsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	w := &Watcher{
		Interval: time.Millisecond,
		OnPoll: func(context.Context) error {
			if calls.Add(1) >= 3 {
				cancel()
			}
			return errors.New("reader offline")
		},
	}

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	if calls.Load() < 3 || w.Polls < 3 {
		t.Errorf("expected at least 3 polls, got %d", w.Polls)
	}
}

func TestNewReaderSelectsSource(t *testing.T) {
	cat := testCatalog(t)
	cfg := testConfig()
	if _, ok := NewReader(cfg, cat).(*snapshot.SyntheticReader); !ok {
		t.Error("default source should be synthetic")
	}
	cfg.Snapshot = config.SnapshotConfig{Source: "file", Path: "/tmp/export.json"}
	if _, ok := NewReader(cfg, cat).(snapshot.FileReader); !ok {
		t.Error("file source should read the export file")
	}
	cfg.Snapshot = config.SnapshotConfig{Source: "http", URL: "http://127.0.0.1:7070/export"}
	if _, ok := NewReader(cfg, cat).(*snapshot.HTTPReader); !ok {
		t.Error("http source should fetch the export")
	}
}
