package engine_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/clock"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/engine"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/event"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

var testTP = noop.NewTracerProvider()

// memStore is an in-memory store honouring the same guard semantics as the
// real drivers: guarded status transitions, atomic purse debits and a
// compare-and-swap on the state version.
type memStore struct {
	mu      sync.Mutex
	teams   map[string]*store.Team
	players map[string]*store.Player
	rounds  map[string]*store.Round
	rosters []store.RosterEntry
	unsold  []store.UnsoldPlayer
	state   store.AuctionState
	events  []event.Event
}

func newMemStore() *memStore {
	return &memStore{
		teams:   make(map[string]*store.Team),
		players: make(map[string]*store.Player),
		rounds:  make(map[string]*store.Round),
		state: store.AuctionState{
			ID:          1,
			WindowState: store.WindowIdle,
			Version:     1,
		},
	}
}

func (m *memStore) repositories() *store.Repositories {
	return &store.Repositories{
		Teams:   (*memTeams)(m),
		Players: (*memPlayers)(m),
		Rounds:  (*memRounds)(m),
		Rosters: (*memRosters)(m),
		Unsold:  (*memUnsold)(m),
		State:   (*memState)(m),
		Events:  (*memEvents)(m),
	}
}

func (m *memStore) rosterCount(teamID string) int {
	n := 0
	for _, e := range m.rosters {
		if e.TeamID == teamID {
			n++
		}
	}
	return n
}

type memTeams memStore

func (m *memTeams) Create(_ context.Context, t *store.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = fmt.Sprintf("team-%d", len(m.teams)+1)
	}
	copied := *t
	m.teams[t.ID] = &copied
	return nil
}

func (m *memTeams) GetByID(_ context.Context, id string) (*store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *t
	copied.RosterCount = (*memStore)(m).rosterCount(id)
	return &copied, nil
}

func (m *memTeams) GetByOwner(_ context.Context, ownerID string) (*store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.OwnerID == ownerID {
			copied := *t
			copied.RosterCount = (*memStore)(m).rosterCount(t.ID)
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memTeams) List(_ context.Context) ([]store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memTeams) DebitPurse(_ context.Context, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return store.ErrNotFound
	}
	if t.Purse < amount {
		return store.ErrInsufficientPurse
	}
	t.Purse -= amount
	return nil
}

func (m *memTeams) AdjustPurse(_ context.Context, id string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return store.ErrNotFound
	}
	if t.Purse+delta < 0 {
		return store.ErrInsufficientPurse
	}
	t.Purse += delta
	return nil
}

type memPlayers memStore

func (m *memPlayers) Create(_ context.Context, p *store.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = fmt.Sprintf("player-%d", len(m.players)+1)
	}
	copied := *p
	m.players[p.ID] = &copied
	return nil
}

func (m *memPlayers) GetByID(_ context.Context, id string) (*store.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memPlayers) NextPending(_ context.Context, roundID string) (*store.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *store.Player
	for _, p := range m.players {
		if p.RoundID != roundID || p.Status != store.StatusPending {
			continue
		}
		if best == nil || p.OrderIndex < best.OrderIndex {
			best = p
		}
	}
	if best == nil {
		return nil, store.ErrNoPendingPlayers
	}
	copied := *best
	return &copied, nil
}

func (m *memPlayers) transition(id string, from, to store.PlayerStatus, mutate func(*store.Player)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.Status != from {
		return store.ErrStatusConflict
	}
	p.Status = to
	if mutate != nil {
		mutate(p)
	}
	return nil
}

func (m *memPlayers) SetCurrent(_ context.Context, id string) error {
	return m.transition(id, store.StatusPending, store.StatusCurrent, nil)
}

func (m *memPlayers) MarkSold(_ context.Context, id, teamID string, price int64, at time.Time) error {
	return m.transition(id, store.StatusCurrent, store.StatusSold, func(p *store.Player) {
		tid := teamID
		pr := price
		soldAt := at
		p.SoldToTeam = &tid
		p.SoldPrice = &pr
		p.SoldAt = &soldAt
	})
}

func (m *memPlayers) MarkUnsold(_ context.Context, id string) error {
	return m.transition(id, store.StatusCurrent, store.StatusUnsold, nil)
}

func (m *memPlayers) ReturnToPending(_ context.Context, id string) error {
	return m.transition(id, store.StatusCurrent, store.StatusPending, nil)
}

func (m *memPlayers) ListByRound(_ context.Context, roundID string) ([]store.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Player
	for _, p := range m.players {
		if p.RoundID == roundID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPlayers) PendingCount(_ context.Context, roundID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.players {
		if p.RoundID == roundID && p.Status == store.StatusPending {
			n++
		}
	}
	return n, nil
}

type memRounds memStore

func (m *memRounds) Create(_ context.Context, r *store.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = fmt.Sprintf("round-%d", len(m.rounds)+1)
	}
	copied := *r
	m.rounds[r.ID] = &copied
	return nil
}

func (m *memRounds) GetByID(_ context.Context, id string) (*store.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *memRounds) List(_ context.Context) ([]store.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Round, 0, len(m.rounds))
	for _, r := range m.rounds {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRounds) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Active = active
	return nil
}

func (m *memRounds) Complete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Active = false
	r.Completed = true
	return nil
}

type memRosters memStore

func (m *memRosters) Add(_ context.Context, e *store.RosterEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = fmt.Sprintf("roster-%d", len(m.rosters)+1)
	m.rosters = append(m.rosters, *e)
	return nil
}

func (m *memRosters) ListByTeam(_ context.Context, teamID string) ([]store.RosterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.RosterEntry
	for _, e := range m.rosters {
		if e.TeamID == teamID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memUnsold memStore

func (m *memUnsold) Add(_ context.Context, u *store.UnsoldPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = fmt.Sprintf("unsold-%d", len(m.unsold)+1)
	m.unsold = append(m.unsold, *u)
	return nil
}

func (m *memUnsold) List(_ context.Context) ([]store.UnsoldPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.UnsoldPlayer(nil), m.unsold...), nil
}

type memState memStore

func (m *memState) Get(_ context.Context) (*store.AuctionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := m.state
	return &copied, nil
}

func (m *memState) UpdateVersioned(_ context.Context, s *store.AuctionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Version != s.Version {
		return store.ErrVersionConflict
	}
	next := *s
	next.Version = s.Version + 1
	m.state = next
	s.Version++
	return nil
}

type memEvents memStore

func (m *memEvents) Append(_ context.Context, events ...event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *memEvents) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for _, e := range m.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) countByType(t event.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// hookState wraps a state repository with callbacks fired before reads and
// writes, so tests can interleave a competing write at an exact point inside
// an engine operation.
type hookState struct {
	store.StateRepository
	mu           sync.Mutex
	reads        int
	beforeGet    func(call int)
	beforeUpdate func()
}

func (h *hookState) Get(ctx context.Context) (*store.AuctionState, error) {
	h.mu.Lock()
	h.reads++
	n := h.reads
	fn := h.beforeGet
	h.mu.Unlock()
	if fn != nil {
		fn(n)
	}
	return h.StateRepository.Get(ctx)
}

func (h *hookState) UpdateVersioned(ctx context.Context, s *store.AuctionState) error {
	h.mu.Lock()
	fn := h.beforeUpdate
	h.beforeUpdate = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return h.StateRepository.UpdateVersioned(ctx, s)
}

// recordingNotifier captures announcements for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	sold   []string
	unsold []string
	rounds []string
}

func (n *recordingNotifier) PlayerSold(_ context.Context, playerName, _ string, _ int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sold = append(n.sold, playerName)
}

func (n *recordingNotifier) PlayerUnsold(_ context.Context, playerName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unsold = append(n.unsold, playerName)
}

func (n *recordingNotifier) RoundCompleted(_ context.Context, roundName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rounds = append(n.rounds, roundName)
}

func testConfig() engine.Config {
	return engine.Config{
		OpeningWindow:      60 * time.Second,
		ContinuationWindow: 15 * time.Second,
		ExpiryGrace:        500 * time.Millisecond,
		BidLockWait:        250 * time.Millisecond,
		BidLockHold:        2 * time.Second,
		Tiers: []engine.Tier{
			{Below: 1_000_000, Step: 0},
			{Below: 5_000_000, Step: 500_000},
			{Below: 10_000_000, Step: 1_000_000},
			{Below: 0, Step: 2_500_000},
		},
	}
}

// fixture wires an engine over a memStore with a mock clock.
type fixture struct {
	eng      *engine.Engine
	mem      *memStore
	clk      *clock.Mock
	notifier *recordingNotifier
	state    *hookState
}

func newFixture() *fixture {
	mem := newMemStore()
	clk := clock.NewMock(time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))
	notifier := &recordingNotifier{}
	repos := mem.repositories()
	hook := &hookState{StateRepository: repos.State}
	repos.State = hook
	eng := engine.New(testConfig(), repos, notifier, slog.Default(), testTP, clk)
	return &fixture{eng: eng, mem: mem, clk: clk, notifier: notifier, state: hook}
}

// seedAuction creates a round with players and two funded teams.
func (f *fixture) seedAuction(players ...store.Player) {
	ctx := context.Background()
	_ = (*memRounds)(f.mem).Create(ctx, &store.Round{ID: "round-1", Number: 1, Name: "Marquee"})
	for i := range players {
		p := players[i]
		if p.RoundID == "" {
			p.RoundID = "round-1"
		}
		if p.Status == "" {
			p.Status = store.StatusPending
		}
		_ = (*memPlayers)(f.mem).Create(ctx, &p)
	}
	_ = (*memTeams)(f.mem).Create(ctx, &store.Team{
		ID: "team-a", Name: "Mumbai Stars", OwnerID: "owner-a",
		Purse: 100_000_000, MaxRoster: 25,
	})
	_ = (*memTeams)(f.mem).Create(ctx, &store.Team{
		ID: "team-b", Name: "Chennai Kings", OwnerID: "owner-b",
		Purse: 100_000_000, MaxRoster: 25,
	})
}

func (f *fixture) start(t interface{ Fatalf(string, ...any) }) {
	if _, err := f.eng.Dispatch(context.Background(), engine.ActionStart, engine.DispatchParams{RoundID: "round-1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
}
