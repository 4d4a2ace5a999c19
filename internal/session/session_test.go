package session

import (
	"errors"
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/combo"
	"github.com/talgya/isle-planner/internal/evaluate"
	"github.com/talgya/isle-planner/internal/market"
	"github.com/talgya/isle-planner/internal/snapshot"
	"github.com/talgya/isle-planner/internal/solver"
)

type fixture struct {
	cat   *catalog.Catalog
	model *market.Model
	slv   *solver.Solver
	opts  Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mats := []catalog.Material{{Name: "Gem", Rare: true, Value: 20}, {Name: "Sand"}}
	items := []catalog.Item{
		{Name: "A", BaseValue: 100, CraftHours: 4, Categories: []string{"x"},
			Materials: []catalog.MaterialQty{{Material: 0, Qty: 1}}},
		{Name: "B", BaseValue: 50, CraftHours: 4, Categories: []string{"x"},
			Materials: []catalog.MaterialQty{{Material: 1, Qty: 2}}},
		{Name: "C", BaseValue: 70, CraftHours: 6, Categories: []string{"x"},
			Materials: []catalog.MaterialQty{{Material: 1, Qty: 1}}},
	}
	cat, err := catalog.New(items, mats)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	model := market.NewModel(cat, market.DefaultPolicy())
	sopts := solver.Options{Workshops: 2, Slots: 2, Suggestions: 3, Mirror: true, MaterialWeight: 0.5, Lookahead: 2}
	slv := solver.New(evaluate.New(model, combo.DefaultSlotPolicy()), sopts)
	return &fixture{cat: cat, model: model, slv: slv, opts: Options{Solver: sopts, MaxGroove: 35}}
}

// snap returns a snapshot for day where C has an announced peak today whose
// strength is unknown.
func (f *fixture) snap(day int) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Day:           day,
		WorkshopBonus: 100,
		Items: []snapshot.ItemReading{
			{Item: 0, Popularity: snapshot.PopularityAverage, Supply: snapshot.SupplySufficient, Shift: snapshot.ShiftNone, PeakDay: -1},
			{Item: 1, Popularity: snapshot.PopularityAverage, Supply: snapshot.SupplySufficient, Shift: snapshot.ShiftNone, PeakDay: -1},
			{Item: 2, Popularity: snapshot.PopularityAverage, Supply: snapshot.SupplySufficient, Shift: snapshot.ShiftNone, PeakDay: day},
		},
	}
}

func (f *fixture) session(t *testing.T, day int) *Session {
	t.Helper()
	s, err := New(f.model, f.slv, f.opts, f.snap(day), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewNoMarketData(t *testing.T) {
	f := newFixture(t)
	if _, err := New(f.model, f.slv, f.opts, &snapshot.Snapshot{Day: 1}, nil); !errors.Is(err, market.ErrNoMarketData) {
		t.Fatalf("expected ErrNoMarketData, got %v", err)
	}
}

func TestInjectStubDay(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 2)
	before := s.State()

	sum, err := s.InjectStubDay(2, 40, 500)
	if err != nil {
		t.Fatalf("InjectStubDay: %v", err)
	}
	if sum.Day != 2 || sum.Groove != 40 || sum.Gross != 500 || sum.Net != 500 || !sum.Stub {
		t.Errorf("summary does not match the injected values: %+v", sum)
	}
	got, ok := s.EndDaySummary(2)
	if !ok || got.Groove != 40 || got.Gross != 500 {
		t.Errorf("recorded summary wrong: %+v", got)
	}
	// No crafts are guessed: every item takes the idle transition.
	if want := f.model.Advance(before, nil); !reflect.DeepEqual(s.State(), want) {
		t.Error("stub day should advance the market as an idle day")
	}
	if s.Day() != 3 {
		t.Errorf("expected day 3, got %d", s.Day())
	}
	if tot := s.Totals(); tot.Groove != 40 || tot.Gross != 500 {
		t.Errorf("unexpected totals %+v", tot)
	}
	if _, err := s.InjectStubDay(5, 1, 1); !errors.Is(err, ErrDayOutOfRange) {
		t.Errorf("future day: expected ErrDayOutOfRange, got %v", err)
	}
}

func TestCommitRejectsUnsuggested(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 1)
	rec := s.Record()

	rest := combo.Rest(2, 2)
	if _, err := s.Commit(1, rest); !errors.Is(err, ErrInvalidCommitment) {
		t.Fatalf("commit before solve: expected ErrInvalidCommitment, got %v", err)
	}
	if _, err := s.Solve(); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if _, err := s.Commit(1, rest); !errors.Is(err, ErrInvalidCommitment) {
		t.Fatalf("rest is not among the top 3: expected ErrInvalidCommitment, got %v", err)
	}
	sched, _ := s.Suggestions(1)
	best, _ := sched.Best()
	if _, err := s.Commit(2, best.Combination); !errors.Is(err, ErrInvalidCommitment) {
		t.Fatalf("wrong day: expected ErrInvalidCommitment, got %v", err)
	}
	if !reflect.DeepEqual(rec, s.Record()) {
		t.Error("failed commits must leave the session unchanged")
	}
}

func TestCommitAdvancesAndInvalidates(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 1)
	before := s.State()

	days, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("expected day 1 and two projections, got %d", len(days))
	}
	best, _ := days[0].Best()
	if s.Selected(1, best.Key) != 0 {
		t.Error("best suggestion should be selected at index 0")
	}

	sum, err := s.Commit(1, best.Combination)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if s.Day() != 2 {
		t.Errorf("commit should advance exactly one day, got %d", s.Day())
	}
	for d := 1; d <= 3; d++ {
		if _, ok := s.Suggestions(d); ok {
			t.Errorf("suggestions for day %d should be invalidated", d)
		}
	}
	want := f.model.Advance(before, best.Combination.Production(f.slv.Evaluator.Policy))
	if !reflect.DeepEqual(s.State(), want) {
		t.Error("market should advance by the committed production")
	}
	if sum.Gross != best.Gross || sum.CumulativeNet != best.Net || sum.Groove != best.GrooveGain {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestSolveCachedUntilMutation(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 1)
	first, _ := s.Solve()
	second, _ := s.Solve()
	if !reflect.DeepEqual(first, second) {
		t.Error("re-solve without mutation should return the same schedule")
	}
}

func TestSolveReturnsCopies(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 1)
	days, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want, _ := s.Suggestions(1)
	best, _ := want.Best()

	got := days[0].Suggestions
	got[0] = got[len(got)-1]
	slices.Reverse(got)
	peek, _ := s.Suggestions(1)
	peek.Suggestions[0].Key = "edited"

	again, _ := s.Solve()
	if !reflect.DeepEqual(again[0], want) {
		t.Error("editing returned suggestions changed the cached schedule")
	}
	if _, err := s.Commit(1, best.Combination); err != nil {
		t.Errorf("best suggestion should still commit: %v", err)
	}
}

func TestRecordHint(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 2)
	if p := s.Pending(); len(p) != 1 || p[0] != 2 {
		t.Fatalf("expected C pending, got %v", p)
	}
	if _, err := s.InjectStubDay(2, 0, 10); err != nil {
		t.Fatal(err)
	}
	history := s.Summaries()

	// Day 3 is one day past the peak of C, where the two curves differ.
	stateBefore := s.State()
	if err := s.RecordHint(2, true); err != nil {
		t.Fatalf("RecordHint: %v", err)
	}
	if f.model.ValueOf(2, s.State()) == f.model.ValueOf(2, stateBefore) {
		t.Error("hint should change the value of C")
	}
	if !reflect.DeepEqual(history, s.Summaries()) {
		t.Error("hint must not rewrite history")
	}
	if len(s.Pending()) != 0 {
		t.Error("hinted item should leave the pending list")
	}
	if err := s.RecordHint(99, false); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestOverwritePastDay(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 1)
	s.InjectStubDay(1, 5, 100)
	s.InjectStubDay(2, 9, 200)

	if _, err := s.InjectStubDay(1, 7, 150); !errors.Is(err, ErrOverwriteDisabled) {
		t.Fatalf("expected ErrOverwriteDisabled, got %v", err)
	}

	f.opts.AllowOverwrite = true
	s2 := f.session(t, 1)
	s2.InjectStubDay(1, 5, 100)
	s2.InjectStubDay(2, 9, 200)
	stateBefore := s2.State()
	sum, err := s2.InjectStubDay(1, 7, 150)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if sum.Gross != 150 || sum.CumulativeGross != 150 {
		t.Errorf("unexpected overwritten summary %+v", sum)
	}
	day2, _ := s2.EndDaySummary(2)
	if day2.CumulativeGross != 350 {
		t.Errorf("later cumulative totals should be recomputed, got %v", day2.CumulativeGross)
	}
	if tot := s2.Totals(); tot.Gross != 350 || tot.Day != 3 || tot.Groove != 9 {
		t.Errorf("unexpected totals %+v", tot)
	}
	if !reflect.DeepEqual(stateBefore, s2.State()) {
		t.Error("overwriting history must not move the market")
	}
}

func TestOverwriteKeepsCommittedCrafts(t *testing.T) {
	f := newFixture(t)
	f.opts.AllowOverwrite = true
	s := f.session(t, 1)
	days, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	best, _ := days[0].Best()
	if _, err := s.Commit(1, best.Combination); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	s.InjectStubDay(2, 9, 200)
	rec := s.Record()

	if _, err := s.InjectStubDay(1, 7, 150); !errors.Is(err, ErrOverwriteDisabled) {
		t.Fatalf("expected ErrOverwriteDisabled for a crafted day, got %v", err)
	}
	if !reflect.DeepEqual(rec, s.Record()) {
		t.Error("rejected overwrite must leave the session unchanged")
	}
	if _, err := s.InjectStubDay(2, 4, 120); err != nil {
		t.Errorf("a stub day should stay replaceable: %v", err)
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 3)
	if err := s.Refresh(f.snap(4)); !errors.Is(err, ErrStaleSnapshot) {
		t.Errorf("expected ErrStaleSnapshot, got %v", err)
	}
	if err := s.Refresh(&snapshot.Snapshot{Day: 3}); !errors.Is(err, market.ErrNoMarketData) {
		t.Errorf("expected ErrNoMarketData, got %v", err)
	}
	s.RecordHint(2, true)
	if err := s.Refresh(f.snap(3)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.State().Entries[2].Cycle != market.CycleStrong {
		t.Error("recorded hints should survive a refresh")
	}
}

func TestNextCycle(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 5)
	if err := s.NextCycle(); !errors.Is(err, ErrCycleOpen) {
		t.Fatalf("expected ErrCycleOpen, got %v", err)
	}
	s.InjectStubDay(5, 10, 100)
	s.InjectStubDay(6, 20, 100)
	if _, err := s.Solve(); !errors.Is(err, ErrCycleComplete) {
		t.Errorf("expected ErrCycleComplete, got %v", err)
	}
	carried := s.State()

	if err := s.NextCycle(); err != nil {
		t.Fatalf("NextCycle: %v", err)
	}
	tot := s.Totals()
	if tot.Cycle != 1 || tot.Day != 0 || tot.Gross != 0 || tot.Groove != 0 {
		t.Errorf("counters should reset, got %+v", tot)
	}
	if len(s.Summaries()) != 0 {
		t.Error("summaries should reset")
	}
	if !reflect.DeepEqual(carried, s.State()) {
		t.Error("market should carry over into the new cycle")
	}
	if s.State().Phase() != 0 {
		t.Errorf("new cycle should start on phase 0, got %d", s.State().Phase())
	}
}

func TestRecordRestore(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 1)
	s.RecordHint(2, false)
	s.InjectStubDay(1, 3, 42)

	back, err := Restore(f.model, f.slv, f.opts, s.Record())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(s.Record(), back.Record()) {
		t.Error("restored session should match its record")
	}
	if _, err := Restore(f.model, f.slv, f.opts, Record{}); !errors.Is(err, market.ErrNoMarketData) {
		t.Errorf("expected ErrNoMarketData, got %v", err)
	}
}

func TestConcurrentSolveAndCommit(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, 1)
	if _, err := s.Solve(); err != nil {
		t.Fatal(err)
	}
	sched, _ := s.Suggestions(1)
	best, _ := sched.Best()

	var wg sync.WaitGroup
	var commits int
	var mu sync.Mutex
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Solve()
			if _, err := s.Commit(1, best.Combination); err == nil {
				mu.Lock()
				commits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if commits != 1 || s.Day() != 2 {
		t.Errorf("exactly one commit should land, got %d commits on day %d", commits, s.Day())
	}
}
