// Package engine wires the planner together: the snapshot reader, the
// session, the solver stack and the store the session is saved to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/combo"
	"github.com/talgya/isle-planner/internal/config"
	"github.com/talgya/isle-planner/internal/evaluate"
	"github.com/talgya/isle-planner/internal/market"
	"github.com/talgya/isle-planner/internal/persistence"
	"github.com/talgya/isle-planner/internal/session"
	"github.com/talgya/isle-planner/internal/snapshot"
	"github.com/talgya/isle-planner/internal/solver"
)

// ErrNoSuggestion is returned when a rank does not match a cached suggestion.
var ErrNoSuggestion = errors.New("no such suggestion")

// Store persists sessions and their activity log.
type Store interface {
	SaveSession(rec session.Record) error
	LoadSession(id uuid.UUID) (session.Record, error)
	CurrentSession() (uuid.UUID, bool)
	SetCurrentSession(id uuid.UUID) error
	LogEvent(id uuid.UUID, cycle, day int, category, description string) error
	RecentEvents(id uuid.UUID, limit int) ([]persistence.Event, error)
}

// Planner owns one session and keeps it in sync with the snapshot reader and
// the store. All methods are safe for concurrent use.
type Planner struct {
	Config  config.Config
	Catalog *catalog.Catalog
	Model   *market.Model

	reader snapshot.Reader
	store  Store

	mu        sync.Mutex
	sess      *session.Session
	layout    Layout
	syncedDay int
}

// Layout is the workshop grid the planner solves for.
type Layout struct {
	Workshops int `json:"workshops"`
	Slots     int `json:"slots"`
}

// LoadCatalog returns the configured catalog, or the built-in one.
func LoadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Catalog)
}

// NewReader builds the snapshot reader selected by cfg.
func NewReader(cfg config.Config, cat *catalog.Catalog) snapshot.Reader {
	switch cfg.Snapshot.Source {
	case "file":
		return snapshot.FileReader{Path: cfg.Snapshot.Path, Catalog: cat}
	case "http":
		return snapshot.NewHTTPReader(cfg.Snapshot.URL, cfg.Snapshot.Token, cat, cfg.Snapshot.CacheTTL)
	}
	return &snapshot.SyntheticReader{
		Catalog:   cat,
		Seed:      cfg.Snapshot.Seed,
		Workshops: cfg.Workshops,
		MaxGroove: cfg.MaxGroove,
	}
}

// New returns a planner. It resumes the store's current session when there is
// one and otherwise starts a new session from a fresh snapshot.
func New(ctx context.Context, cfg config.Config, cat *catalog.Catalog, reader snapshot.Reader, store Store) (*Planner, error) {
	p := &Planner{
		Config:    cfg,
		Catalog:   cat,
		Model:     market.NewModel(cat, cfg.Market),
		reader:    reader,
		store:     store,
		syncedDay: -1,
	}

	if id, ok := store.CurrentSession(); ok {
		rec, err := store.LoadSession(id)
		switch {
		case err == nil:
			if err := p.resume(ctx, rec); err != nil {
				return nil, err
			}
			return p, nil
		case errors.Is(err, persistence.ErrNotFound):
			slog.Warn("current session missing from store, starting over", "session", id)
		default:
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
	}

	snap, err := p.read(ctx, 0)
	if err != nil {
		return nil, err
	}
	if err := p.start(snap); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Planner) resume(ctx context.Context, rec session.Record) error {
	// The layout comes from config or, failing that, today's snapshot.
	layout := Layout{Workshops: p.Config.Workshops, Slots: p.Config.SlotsPerWorkshop}
	if layout.Workshops == 0 {
		snap, err := p.read(ctx, rec.Day)
		if err != nil {
			return err
		}
		layout.Workshops = workshopsOf(snap)
	}
	p.layout = layout
	sess, err := session.Restore(p.Model, p.newSolver(layout), p.Config.SessionOptions(layout.Workshops), rec)
	if err != nil {
		return err
	}
	p.sess = sess
	slog.Info("session resumed", "session", rec.ID, "cycle", rec.Cycle, "day", rec.Day, "workshops", layout.Workshops)
	return nil
}

// start replaces the session with a new one built from snap.
func (p *Planner) start(snap *snapshot.Snapshot) error {
	layout := Layout{Workshops: p.Config.Workshops, Slots: p.Config.SlotsPerWorkshop}
	if layout.Workshops == 0 {
		layout.Workshops = workshopsOf(snap)
	}
	sess, err := session.New(p.Model, p.newSolver(layout), p.Config.SessionOptions(layout.Workshops), snap, nil)
	if err != nil {
		return err
	}
	p.warnInventory(snap)
	p.sess = sess
	p.layout = layout
	p.syncedDay = snap.Day
	if err := p.store.SetCurrentSession(sess.ID()); err != nil {
		return fmt.Errorf("mark current session: %w", err)
	}
	p.save("session", fmt.Sprintf("session started on day %d", snap.Day))
	slog.Info("session started", "session", sess.ID(), "day", snap.Day, "workshops", layout.Workshops)
	return nil
}

func (p *Planner) newSolver(l Layout) *solver.Solver {
	ev := evaluate.New(p.Model, p.Config.Slots)
	return solver.New(ev, p.Config.SolverOptions(l.Workshops))
}

func workshopsOf(snap *snapshot.Snapshot) int {
	if snap == nil || snap.Workshops <= 0 {
		return 1
	}
	return snap.Workshops
}

// read fetches the snapshot for day. The synthetic reader is pointed at the
// requested day; other readers report whatever day the game is on.
func (p *Planner) read(ctx context.Context, day int) (*snapshot.Snapshot, error) {
	if r, ok := p.reader.(*snapshot.SyntheticReader); ok {
		r.Day = day
	}
	snap, err := p.reader.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return snap, nil
}

func (p *Planner) warnInventory(snap *snapshot.Snapshot) {
	if p.Config.RequireOwnedMaterials && !snap.HasInventory() {
		slog.Warn("owned materials required but the snapshot has no inventory; rare materials count as zero")
	}
}

// Sync re-reads the snapshot once per day. A reading for the session's
// current day replaces the market state; anything else is ignored and the
// projected market is kept. Synthetic readings only seed a new session: they
// know nothing of committed crafts, so the projected market is kept.
func (p *Planner) Sync(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sync(ctx, true)
}

func (p *Planner) sync(ctx context.Context, force bool) error {
	day := p.sess.Day()
	if day >= market.DaysPerCycle || (!force && p.syncedDay == day) {
		return nil
	}
	if _, ok := p.reader.(*snapshot.SyntheticReader); ok {
		p.syncedDay = day
		return nil
	}
	snap, err := p.read(ctx, day)
	if err != nil {
		return err
	}
	p.syncedDay = day
	if snap.Day != day {
		slog.Warn("snapshot is for a different day, keeping projected market", "snapshot_day", snap.Day, "day", day)
		return nil
	}
	if err := p.sess.Refresh(snap); err != nil {
		if errors.Is(err, market.ErrNoMarketData) {
			slog.Warn("snapshot has no supply readings, keeping projected market", "day", day)
			return nil
		}
		return err
	}
	p.warnInventory(snap)
	p.save("snapshot", fmt.Sprintf("market refreshed from snapshot on day %d", day))
	return nil
}

// Solve refreshes the market at the start of a new day and ranks it.
func (p *Planner) Solve(ctx context.Context) ([]solver.DaySchedule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.sync(ctx, false); err != nil {
		slog.Warn("snapshot sync failed", "error", err)
	}
	days, err := p.sess.Solve()
	if err != nil {
		return nil, err
	}
	if len(days) > 0 {
		if best, ok := days[0].Best(); ok {
			p.event("solve", fmt.Sprintf("day %d solved, best %s worth %.0f", days[0].Day, best.Key, best.Net))
		}
	}
	return days, nil
}

// Schedule returns the cached suggestions of the current day and the
// projected days after it, without solving.
func (p *Planner) Schedule() []solver.DaySchedule {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []solver.DaySchedule
	for d := p.sess.Day(); d < market.DaysPerCycle; d++ {
		sched, ok := p.sess.Suggestions(d)
		if !ok {
			break
		}
		out = append(out, sched)
	}
	return out
}

// Suggestion returns the rank-th (1-based) cached suggestion for day.
func (p *Planner) Suggestion(day, rank int) (evaluate.Scored, error) {
	sched, ok := p.sess.Suggestions(day)
	if !ok || rank < 1 || rank > len(sched.Suggestions) {
		return evaluate.Scored{}, fmt.Errorf("%w: day %d rank %d", ErrNoSuggestion, day, rank)
	}
	return sched.Suggestions[rank-1], nil
}

// Commit locks in the combination with key for day.
func (p *Planner) Commit(day int, key string) (session.Summary, error) {
	c, err := combo.ParseKey(key)
	if err != nil {
		return session.Summary{}, fmt.Errorf("%w: %v", session.ErrInvalidCommitment, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sum, err := p.sess.Commit(day, c)
	if err != nil {
		return session.Summary{}, err
	}
	p.save("commit", fmt.Sprintf("day %d committed %s for %.0f", day, sum.Key, sum.Net))
	return sum, nil
}

// Hint records the demand-cycle strength of a product given by name.
func (p *Planner) Hint(name string, strong bool) error {
	id, ok := p.Catalog.ItemByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", session.ErrUnknownItem, name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sess.RecordHint(id, strong); err != nil {
		return err
	}
	strength := "weak"
	if strong {
		strength = "strong"
	}
	p.save("hint", fmt.Sprintf("%s marked %s", p.Catalog.Item(id).Name, strength))
	return nil
}

// Stub records a day whose crafts were not planned here.
func (p *Planner) Stub(day, groove int, value float64) (session.Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sum, err := p.sess.InjectStubDay(day, groove, value)
	if err != nil {
		return session.Summary{}, err
	}
	p.save("stub", fmt.Sprintf("day %d stubbed with groove %d and value %.0f", day, groove, value))
	return sum, nil
}

// NextCycle closes the week and starts the next one in the same session.
func (p *Planner) NextCycle(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sess.NextCycle(); err != nil {
		return err
	}
	p.save("cycle", fmt.Sprintf("cycle %d started", p.sess.Totals().Cycle))
	if err := p.sync(ctx, true); err != nil {
		slog.Warn("snapshot sync failed", "error", err)
	}
	return nil
}

// Status is the planner overview.
type Status struct {
	Session   uuid.UUID      `json:"session"`
	Layout    Layout         `json:"layout"`
	Totals    session.Totals `json:"totals"`
	Pending   []string       `json:"pending_hints"`
	Complete  bool           `json:"cycle_complete"`
	Summaries int            `json:"days_recorded"`
	Options   solver.Options `json:"options"`
}

// Status returns the planner overview.
func (p *Planner) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	totals := p.sess.Totals()
	return Status{
		Session:   p.sess.ID(),
		Layout:    p.layout,
		Totals:    totals,
		Pending:   p.Catalog.ItemNames(p.sess.Pending()),
		Complete:  totals.Day >= market.DaysPerCycle,
		Summaries: len(p.sess.Summaries()),
		Options:   p.Config.SolverOptions(p.layout.Workshops),
	}
}

// Summaries returns the recorded days of the current cycle.
func (p *Planner) Summaries() []session.Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess.Summaries()
}

// Events returns the most recent activity of the session.
func (p *Planner) Events(limit int) ([]persistence.Event, error) {
	p.mu.Lock()
	id := p.sess.ID()
	p.mu.Unlock()
	return p.store.RecentEvents(id, limit)
}

// save persists the session and logs an activity entry. Store failures are
// logged; the in-memory session stays authoritative.
func (p *Planner) save(category, description string) {
	if err := p.store.SaveSession(p.sess.Record()); err != nil {
		slog.Error("failed to save session", "session", p.sess.ID(), "error", err)
	}
	p.event(category, description)
}

func (p *Planner) event(category, description string) {
	totals := p.sess.Totals()
	if err := p.store.LogEvent(p.sess.ID(), totals.Cycle, totals.Day, category, description); err != nil {
		slog.Error("failed to log event", "category", category, "error", err)
	}
}
