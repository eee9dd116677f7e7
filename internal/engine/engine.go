package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/clock"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/event"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// Tier defines the bid increment for players whose base price is strictly
// below Below. A zero Below marks the open-ended final tier; a zero Step
// means "the base price itself".
type Tier struct {
	Below int64
	Step  int64
}

// Config holds the engine's timing and bidding parameters.
type Config struct {
	// OpeningWindow is armed when a player first goes up and on resume.
	OpeningWindow time.Duration
	// ContinuationWindow is the shorter window re-armed after each bid.
	ContinuationWindow time.Duration
	// ExpiryGrace is how far before the deadline an expiry claim is still
	// honoured, tolerating client and network jitter.
	ExpiryGrace time.Duration
	// BidLockWait bounds how long a bid waits for its turn.
	BidLockWait time.Duration
	// BidLockHold bounds how long one bid may hold the critical section.
	BidLockHold time.Duration
	// Tiers maps base-price bands to increments, evaluated in order.
	Tiers []Tier
}

// Notifier receives fire-and-forget announcements of auction outcomes.
// Implementations must never block the engine; failures are their own
// concern.
type Notifier interface {
	PlayerSold(ctx context.Context, playerName, teamName string, price int64)
	PlayerUnsold(ctx context.Context, playerName string)
	RoundCompleted(ctx context.Context, roundName string)
}

type nopNotifier struct{}

func (nopNotifier) PlayerSold(context.Context, string, string, int64) {}
func (nopNotifier) PlayerUnsold(context.Context, string)              {}
func (nopNotifier) RoundCompleted(context.Context, string)            {}

// Engine runs the live auction: it arbitrates bids, dispatches control
// actions, owns the bidding clock, and finalizes sales. All auction-state
// mutations in the process go through it.
type Engine struct {
	cfg Config

	teams   store.TeamRepository
	players store.PlayerRepository
	rounds  store.RoundRepository
	rosters store.RosterRepository
	unsold  store.UnsoldRepository
	state   store.StateRepository
	events  event.Store

	logger   *slog.Logger
	tracer   trace.Tracer
	clock    clock.Clock
	notifier Notifier

	bidLock *timedLock
	ctrlMu  sync.Mutex
}

// New creates an Engine over the given repositories.
func New(cfg Config, repos *store.Repositories, notifier Notifier, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Engine{
		cfg:      cfg,
		teams:    repos.Teams,
		players:  repos.Players,
		rounds:   repos.Rounds,
		rosters:  repos.Rosters,
		unsold:   repos.Unsold,
		state:    repos.State,
		events:   repos.Events,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jayppatell1996-lgtm/cricket-auction/internal/engine"),
		clock:    clk,
		notifier: notifier,
		bidLock:  newTimedLock(cfg.BidLockHold),
	}
}

// increment returns the bid step for a player of the given base price.
func (e *Engine) increment(basePrice int64) int64 {
	for _, t := range e.cfg.Tiers {
		if t.Below == 0 || basePrice < t.Below {
			if t.Step == 0 {
				return basePrice
			}
			return t.Step
		}
	}
	return basePrice
}

// Snapshot is the full auction state plus the remaining bidding time
// computed the same way expiry validation computes it, so clients and the
// engine never disagree about the clock.
type Snapshot struct {
	State     *store.AuctionState
	Remaining time.Duration
}

// State returns a snapshot of the live auction.
func (e *Engine) State(ctx context.Context) (*Snapshot, error) {
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	return &Snapshot{
		State:     s,
		Remaining: windowOf(s).Remaining(e.clock.Now().UTC()),
	}, nil
}

// appendEvent records an audit entry. Failures are logged and swallowed:
// the transcript is best-effort and never unwinds a state mutation.
func (e *Engine) appendEvent(ctx context.Context, t event.Type, aggregateID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.ErrorContext(ctx, "marshalling audit event", slog.String("type", string(t)), slog.Any("error", err))
		return
	}
	evt := event.Event{
		AggregateID: aggregateID,
		Type:        t,
		Data:        data,
	}
	if err := e.events.Append(ctx, evt); err != nil {
		e.logger.ErrorContext(ctx, "appending audit event", slog.String("type", string(t)), slog.Any("error", err))
	}
}
