package session

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/market"
	"github.com/talgya/isle-planner/internal/solver"
)

// Record is the persistent form of a session. Cached suggestions are not
// part of it; a restored session must be solved again before a commit.
type Record struct {
	ID        uuid.UUID                  `json:"id"`
	Cycle     int                        `json:"cycle"`
	Day       int                        `json:"day"`
	Groove    int                        `json:"groove"`
	MaxGroove int                        `json:"max_groove"`
	Bonus     int                        `json:"bonus"`
	Gross     float64                    `json:"gross"`
	Net       float64                    `json:"net"`
	State     market.State               `json:"state"`
	Inventory map[catalog.MaterialID]int `json:"inventory,omitempty"`
	Hints     market.Hints               `json:"hints"`
	Pending   []catalog.ItemID           `json:"pending,omitempty"`
	Summaries []Summary                  `json:"summaries"`
}

// Record returns a deep copy of the session's persistent state.
func (s *Session) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Record{
		ID:        s.id,
		Cycle:     s.cycle,
		Day:       s.day,
		Groove:    s.groove,
		MaxGroove: s.maxGroove,
		Bonus:     s.bonus,
		Gross:     s.gross,
		Net:       s.net,
		State:     s.state.Clone(),
		Inventory: maps.Clone(s.inventory),
		Hints:     maps.Clone(s.hints),
		Pending:   slices.Clone(s.pending),
		Summaries: slices.Clone(s.summaries),
	}
}

// Restore rebuilds a session from a record.
func Restore(model *market.Model, slv *solver.Solver, opts Options, rec Record) (*Session, error) {
	if !rec.State.Valid(len(model.Catalog.Items)) {
		return nil, fmt.Errorf("restore session %s: %w", rec.ID, market.ErrNoMarketData)
	}
	if rec.Day < 0 || rec.Day > market.DaysPerCycle {
		return nil, fmt.Errorf("restore session %s: %w: %d", rec.ID, ErrDayOutOfRange, rec.Day)
	}
	s := &Session{
		id:        rec.ID,
		model:     model,
		solver:    slv,
		opts:      opts,
		cycle:     rec.Cycle,
		day:       rec.Day,
		groove:    rec.Groove,
		maxGroove: rec.MaxGroove,
		bonus:     rec.Bonus,
		gross:     rec.Gross,
		net:       rec.Net,
		state:     rec.State.Clone(),
		inventory: maps.Clone(rec.Inventory),
		hints:     maps.Clone(rec.Hints),
		pending:   slices.Clone(rec.Pending),
		summaries: slices.Clone(rec.Summaries),
		schedule:  make(map[int]solver.DaySchedule),
	}
	if s.id == uuid.Nil {
		s.id = uuid.New()
	}
	if s.hints == nil {
		s.hints = make(market.Hints)
	}
	return s, nil
}
