// Package session tracks one player's progress through a 7-day cycle: the
// market state, committed days, groove and cumulative totals.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/combo"
	"github.com/talgya/isle-planner/internal/evaluate"
	"github.com/talgya/isle-planner/internal/market"
	"github.com/talgya/isle-planner/internal/snapshot"
	"github.com/talgya/isle-planner/internal/solver"
)

var (
	// ErrInvalidCommitment is returned when a commit does not match the last
	// suggestions for that day. The session is left unchanged.
	ErrInvalidCommitment = errors.New("invalid commitment")
	// ErrCycleComplete is returned for day operations after day 6 closed.
	ErrCycleComplete = errors.New("cycle complete")
	// ErrCycleOpen is returned by NextCycle before day 6 is closed.
	ErrCycleOpen = errors.New("cycle still open")
	// ErrDayOutOfRange is returned for days outside 0-6 or in the future.
	ErrDayOutOfRange = errors.New("day out of range")
	// ErrOverwriteDisabled is returned when rewriting a past day is not allowed.
	ErrOverwriteDisabled = errors.New("overwriting past days is disabled")
	// ErrStaleSnapshot is returned when a refresh is for a different day.
	ErrStaleSnapshot = errors.New("snapshot is for a different day")
	// ErrUnknownItem is returned for hints on items outside the catalog.
	ErrUnknownItem = errors.New("unknown item")
)

// Summary records what was actually done on one day.
type Summary struct {
	Day             int             `json:"day"`
	Key             string          `json:"key,omitempty"`
	Lines           []evaluate.Line `json:"lines,omitempty"`
	Gross           float64         `json:"gross"`
	Net             float64         `json:"net"`
	Groove          int             `json:"groove"` // cumulative, after the day
	CumulativeGross float64         `json:"cumulative_gross"`
	CumulativeNet   float64         `json:"cumulative_net"`
	Stub            bool            `json:"stub"`
	CommittedAt     time.Time       `json:"committed_at"`
}

// Totals are the cycle's running sums.
type Totals struct {
	Cycle  int     `json:"cycle"`
	Day    int     `json:"day"`
	Gross  float64 `json:"gross"`
	Net    float64 `json:"net"`
	Groove int     `json:"groove"`
}

// Options configures a session.
type Options struct {
	Solver          solver.Options
	AllowOverwrite  bool
	MaxGroove       int
	DefaultBonusPct int
}

// Session is the single owner of the market state and progress of one
// player. Every exported method holds the session lock for its whole run,
// so a solve never observes a half-applied commit.
type Session struct {
	mu sync.Mutex

	id     uuid.UUID
	model  *market.Model
	solver *solver.Solver
	opts   Options

	cycle     int
	day       int
	groove    int
	maxGroove int
	bonus     int
	state     market.State
	inventory map[catalog.MaterialID]int
	hints     market.Hints
	pending   []catalog.ItemID
	summaries []Summary
	gross     float64
	net       float64

	// cached suggestions keyed by day, dropped on any mutation
	schedule map[int]solver.DaySchedule
}

// New creates a session for a fresh cycle from a snapshot. It fails with
// market.ErrNoMarketData when the snapshot carries no readings.
func New(model *market.Model, slv *solver.Solver, opts Options, snap *snapshot.Snapshot, hints market.Hints) (*Session, error) {
	state, pending, err := model.Initialize(snap, hints)
	if err != nil {
		return nil, fmt.Errorf("initialize market: %w", err)
	}
	s := &Session{
		id:       uuid.New(),
		model:    model,
		solver:   slv,
		opts:     opts,
		day:      snap.Day,
		state:    state,
		hints:    maps.Clone(hints),
		pending:  pending,
		schedule: make(map[int]solver.DaySchedule),
	}
	if s.hints == nil {
		s.hints = make(market.Hints)
	}
	s.applySnapshot(snap)
	if len(pending) > 0 {
		slog.Info("session: demand cycles need a hint", "items", model.Catalog.ItemNames(pending))
	}
	return s, nil
}

func (s *Session) applySnapshot(snap *snapshot.Snapshot) {
	s.bonus = snap.WorkshopBonus
	if s.bonus <= 0 {
		s.bonus = s.opts.DefaultBonusPct
	}
	s.maxGroove = s.opts.MaxGroove
	if snap.MaxGroove > 0 {
		s.maxGroove = snap.MaxGroove
	}
	s.inventory = nil
	if snap.HasInventory() {
		s.inventory = maps.Clone(snap.Inventory)
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Day returns the current day index; 7 means the cycle is closed.
func (s *Session) Day() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// Pending returns items waiting for a demand-cycle hint.
func (s *Session) Pending() []catalog.ItemID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pending)
}

// State returns a copy of the current market state.
func (s *Session) State() market.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Solve ranks the current day and projects the lookahead window. Results are
// cached until the next mutation, so repeated calls return the same schedule.
func (s *Session) Solve() ([]solver.DaySchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.day >= market.DaysPerCycle {
		return nil, ErrCycleComplete
	}
	if cached, ok := s.schedule[s.day]; ok {
		out := []solver.DaySchedule{cloneDay(cached)}
		for d := s.day + 1; ; d++ {
			next, ok := s.schedule[d]
			if !ok {
				break
			}
			out = append(out, cloneDay(next))
		}
		return out, nil
	}

	days, err := s.solver.Solve(solver.Request{
		Day:       s.day,
		State:     s.state,
		Modifiers: s.modifiers(),
		MaxGroove: s.maxGroove,
		Inventory: s.inventory,
	})
	if err != nil {
		return nil, err
	}
	out := make([]solver.DaySchedule, len(days))
	for i, d := range days {
		s.schedule[d.Day] = d
		out[i] = cloneDay(d)
	}
	return out, nil
}

// cloneDay copies the suggestion list so callers cannot reorder or edit the
// schedule commits are checked against.
func cloneDay(d solver.DaySchedule) solver.DaySchedule {
	d.Suggestions = slices.Clone(d.Suggestions)
	return d
}

// Suggestions returns the cached schedule for day, if solved.
func (s *Session) Suggestions(day int) (solver.DaySchedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.schedule[day]
	return cloneDay(d), ok
}

// Selected returns the index of key in day's cached suggestions, or -1. A
// re-solve reorders suggestions, so callers track choices by key.
func (s *Session) Selected(day int, key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, i, _ := s.schedule[day].Find(key)
	return i
}

// Commit locks in c for day, which must be the current day and must be one
// of the last suggestions for it. On success the market advances once, the
// day's summary is recorded and all cached suggestions are dropped.
func (s *Session) Commit(day int, c combo.DayCombination) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.day >= market.DaysPerCycle {
		return Summary{}, ErrCycleComplete
	}
	if day != s.day {
		return Summary{}, fmt.Errorf("%w: day %d is not the current day %d", ErrInvalidCommitment, day, s.day)
	}
	sched, ok := s.schedule[day]
	if !ok || sched.Projected {
		return Summary{}, fmt.Errorf("%w: day %d has not been solved", ErrInvalidCommitment, day)
	}
	scored, _, ok := sched.Find(c.Key())
	if !ok {
		return Summary{}, fmt.Errorf("%w: combination %s was not suggested for day %d", ErrInvalidCommitment, c.Key(), day)
	}

	next := s.model.Advance(s.state, scored.Combination.Production(s.solver.Evaluator.Policy))
	groove := s.groove + scored.GrooveGain
	if s.maxGroove > 0 {
		groove = min(groove, s.maxGroove)
	}

	s.state = next
	s.groove = groove
	if s.inventory != nil {
		for id, qty := range evaluate.RareNeed(s.model.Catalog, scored.Materials) {
			s.inventory[id] = max(s.inventory[id]-qty, 0)
		}
	}
	sum := s.record(Summary{
		Day:         day,
		Key:         scored.Key,
		Lines:       scored.Lines,
		Gross:       scored.Gross,
		Net:         scored.Net,
		Groove:      groove,
		CommittedAt: time.Now().UTC(),
	})
	s.day++
	s.invalidate()

	slog.Info("session: day committed", "day", day, "gross", scored.Gross, "net", scored.Net, "groove", groove)
	return sum, nil
}

// RecordHint resolves the demand-cycle strength of item. Later values change;
// recorded history does not.
func (s *Session) RecordHint(item catalog.ItemID, strong bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model.Catalog.Item(item) == nil {
		return fmt.Errorf("%w: %d", ErrUnknownItem, item)
	}
	s.hints[item] = strong
	s.state = s.model.WithHint(s.state, item, strong)
	s.pending = slices.DeleteFunc(s.pending, func(id catalog.ItemID) bool { return id == item })
	s.invalidate()
	return nil
}

// Hints returns a copy of the recorded hints.
func (s *Session) Hints() market.Hints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.hints)
}

// InjectStubDay records a day whose crafts are unknown with explicit
// cumulative groove and value. The current day closes with an idle market
// transition; a past rest or stub day is overwritten only when allowed.
func (s *Session) InjectStubDay(day, groove int, value float64) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if day < 0 || day >= market.DaysPerCycle || day > s.day {
		return Summary{}, fmt.Errorf("%w: %d", ErrDayOutOfRange, day)
	}
	stub := Summary{
		Day:         day,
		Gross:       value,
		Net:         value,
		Groove:      groove,
		Stub:        true,
		CommittedAt: time.Now().UTC(),
	}

	if day < s.day {
		if !s.opts.AllowOverwrite {
			return Summary{}, fmt.Errorf("%w: day %d", ErrOverwriteDisabled, day)
		}
		if prev := s.find(day); len(prev.Lines) > 0 {
			return Summary{}, fmt.Errorf("%w: day %d has committed crafts", ErrOverwriteDisabled, day)
		}
		s.replace(stub)
		s.invalidate()
		return s.find(day), nil
	}

	s.state = s.model.Advance(s.state, nil)
	s.groove = groove
	sum := s.record(stub)
	s.day++
	s.invalidate()
	slog.Info("session: stub day injected", "day", day, "groove", groove, "value", value)
	return sum, nil
}

// Refresh re-reads today's market from a new snapshot taken on the same day.
// Hints already given are reapplied.
func (s *Session) Refresh(snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.day >= market.DaysPerCycle {
		return ErrCycleComplete
	}
	if snap != nil && snap.Day != s.day {
		return fmt.Errorf("%w: snapshot day %d, session day %d", ErrStaleSnapshot, snap.Day, s.day)
	}
	state, pending, err := s.model.Initialize(snap, s.hints)
	if err != nil {
		return err
	}
	// keep the absolute day count so the phase stays aligned across cycles
	state.Day = s.state.Day
	s.state = state
	s.pending = pending
	s.applySnapshot(snap)
	s.invalidate()
	return nil
}

// NextCycle starts a new week once day 6 has closed. The market carries over;
// day, groove, totals, summaries and hints reset.
func (s *Session) NextCycle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.day < market.DaysPerCycle {
		return fmt.Errorf("%w: on day %d", ErrCycleOpen, s.day)
	}
	slog.Info("session: cycle closed", "cycle", s.cycle, "gross", s.gross, "net", s.net)
	s.cycle++
	s.day = 0
	s.groove = 0
	s.gross, s.net = 0, 0
	s.summaries = nil
	s.hints = make(market.Hints)
	s.pending = nil
	s.invalidate()
	return nil
}

// Summaries returns the recorded days in day order.
func (s *Session) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.summaries)
}

// EndDaySummary returns the summary recorded for day.
func (s *Session) EndDaySummary(day int) (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sum := range s.summaries {
		if sum.Day == day {
			return sum, true
		}
	}
	return Summary{}, false
}

// Totals returns the running sums of the cycle.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Totals{Cycle: s.cycle, Day: s.day, Gross: s.gross, Net: s.net, Groove: s.groove}
}

func (s *Session) modifiers() evaluate.Modifiers {
	return evaluate.Modifiers{WorkshopBonus: s.bonus, Groove: s.groove}
}

func (s *Session) invalidate() {
	clear(s.schedule)
}

// record appends sum with cumulative totals filled in.
func (s *Session) record(sum Summary) Summary {
	s.gross += sum.Gross
	s.net += sum.Net
	sum.CumulativeGross = s.gross
	sum.CumulativeNet = s.net
	s.summaries = append(s.summaries, sum)
	return sum
}

// replace swaps the summary of a past day and recomputes every cumulative
// figure after it.
func (s *Session) replace(sum Summary) {
	i := slices.IndexFunc(s.summaries, func(x Summary) bool { return x.Day == sum.Day })
	if i < 0 {
		i, _ = slices.BinarySearchFunc(s.summaries, sum.Day, func(x Summary, d int) int { return x.Day - d })
		s.summaries = slices.Insert(s.summaries, i, sum)
	} else {
		s.summaries[i] = sum
	}
	s.gross, s.net = 0, 0
	for j := range s.summaries {
		s.gross += s.summaries[j].Gross
		s.net += s.summaries[j].Net
		s.summaries[j].CumulativeGross = s.gross
		s.summaries[j].CumulativeNet = s.net
	}
	if last := s.summaries[len(s.summaries)-1]; last.Day == sum.Day {
		s.groove = sum.Groove
	}
}

func (s *Session) find(day int) Summary {
	for _, sum := range s.summaries {
		if sum.Day == day {
			return sum
		}
	}
	return Summary{}
}
