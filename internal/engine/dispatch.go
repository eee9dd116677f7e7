package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/event"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// Action is an administrator control action.
type Action string

const (
	ActionStart    Action = "start"
	ActionNext     Action = "next"
	ActionSell     Action = "sell"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionStop     Action = "stop"
	ActionEndRound Action = "end_round"
	// ActionExpired is a client's claim that the bidding window ran out.
	// It is validated against the authoritative deadline, never trusted.
	ActionExpired Action = "expired"
)

// DispatchParams carries action arguments.
type DispatchParams struct {
	RoundID string
}

// DispatchResult reports the outcome of a control action.
type DispatchResult struct {
	Message string
	Sale    *SaleResult
}

// Dispatch executes a single control action. Control actions never queue:
// a second concurrent call fails immediately with ErrControlBusy, because
// control actions are rare and blindly queuing them would mask operator
// errors.
func (e *Engine) Dispatch(ctx context.Context, action Action, params DispatchParams) (*DispatchResult, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Dispatch",
		trace.WithAttributes(attribute.String("action", string(action))),
	)
	defer span.End()

	if !e.ctrlMu.TryLock() {
		return nil, ErrControlBusy
	}
	defer e.ctrlMu.Unlock()

	var (
		res *DispatchResult
		err error
	)
	switch action {
	case ActionStart:
		res, err = e.startRound(ctx, params.RoundID)
	case ActionNext:
		res, err = e.nextPlayer(ctx)
	case ActionSell:
		res, err = e.sellCurrent(ctx)
	case ActionPause:
		res, err = e.pause(ctx)
	case ActionResume:
		res, err = e.resume(ctx)
	case ActionStop:
		res, err = e.exitAuction(ctx, false)
	case ActionEndRound:
		res, err = e.exitAuction(ctx, true)
	case ActionExpired:
		res, err = e.handleExpiry(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	if err != nil {
		e.logger.InfoContext(ctx, "control action failed",
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
		return nil, err
	}

	e.logger.InfoContext(ctx, "control action applied",
		slog.String("action", string(action)),
		slog.String("result", res.Message),
	)
	return res, nil
}

// saveState persists a control-path state write. Losing the version check
// means a bid landed between this action's read and write; the action is
// safe to retry against the fresh state.
func (e *Engine) saveState(ctx context.Context, s *store.AuctionState) error {
	err := e.state.UpdateVersioned(ctx, s)
	if errors.Is(err, store.ErrVersionConflict) {
		return fmt.Errorf("%w: a bid was accepted mid-action", ErrControlBusy)
	}
	return err
}

// startRound puts the first pending player of the round up for bidding.
func (e *Engine) startRound(ctx context.Context, roundID string) (*DispatchResult, error) {
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	if s.CurrentPlayerID != nil {
		return nil, ErrPlayerActive
	}

	round, err := e.rounds.GetByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoundNotFound, roundID)
		}
		return nil, fmt.Errorf("looking up round: %w", err)
	}
	if round.Completed {
		return nil, ErrRoundCompleted
	}

	player, err := e.players.NextPending(ctx, round.ID)
	if err != nil {
		if errors.Is(err, store.ErrNoPendingPlayers) {
			return nil, fmt.Errorf("%w: round %s has no pending players", ErrRoundNotFound, roundID)
		}
		return nil, fmt.Errorf("selecting next player: %w", err)
	}

	if err := e.putUp(ctx, s, round.ID, player); err != nil {
		return nil, err
	}

	if err := e.rounds.SetActive(ctx, round.ID, true); err != nil {
		return nil, fmt.Errorf("activating round: %w", err)
	}

	e.appendEvent(ctx, event.RoundStarted, round.ID, event.RoundData{
		RoundID:     round.ID,
		RoundNumber: round.Number,
	})

	return &DispatchResult{
		Message: fmt.Sprintf("round %d started, %s up for bidding at %d", round.Number, player.Name, player.BasePrice),
	}, nil
}

// nextPlayer advances the round: an unsold current player goes to the
// unsold ledger, then the next pending player comes up, or the round
// completes.
func (e *Engine) nextPlayer(ctx context.Context) (*DispatchResult, error) {
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	if s.CurrentRoundID == nil {
		return nil, ErrNoActiveRound
	}
	roundID := *s.CurrentRoundID

	if s.CurrentPlayerID != nil {
		if err := e.recordUnsold(ctx, *s.CurrentPlayerID); err != nil {
			return nil, err
		}
	}

	player, err := e.players.NextPending(ctx, roundID)
	if err != nil {
		if errors.Is(err, store.ErrNoPendingPlayers) {
			return e.completeRound(ctx, s, roundID)
		}
		return nil, fmt.Errorf("selecting next player: %w", err)
	}

	if err := e.putUp(ctx, s, roundID, player); err != nil {
		return nil, err
	}

	return &DispatchResult{
		Message: fmt.Sprintf("%s up for bidding at %d", player.Name, player.BasePrice),
	}, nil
}

// sellCurrent finalizes the sale to the highest bidder.
func (e *Engine) sellCurrent(ctx context.Context) (*DispatchResult, error) {
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	if !s.Active || s.CurrentPlayerID == nil {
		return nil, ErrNoCurrentPlayer
	}
	if s.HighestBidderID == nil {
		return nil, ErrNoBids
	}

	sale, err := e.Finalize(ctx, *s.CurrentPlayerID, *s.HighestBidderID, s.CurrentBid)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{
		Message: fmt.Sprintf("%s sold to %s for %d", sale.PlayerName, sale.TeamName, sale.Price),
		Sale:    sale,
	}, nil
}

// pause freezes the bidding clock, capturing the unexpired remainder.
func (e *Engine) pause(ctx context.Context) (*DispatchResult, error) {
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	if !s.Active || s.CurrentPlayerID == nil {
		return nil, ErrNotActive
	}
	if s.Paused {
		return nil, ErrAuctionPaused
	}

	now := e.clock.Now().UTC()
	remaining := windowOf(s).Remaining(now)
	if remaining < 0 {
		remaining = 0
	}

	s.Paused = true
	PausedWindow(remaining).applyTo(s)
	s.UpdatedAt = now
	if err := e.saveState(ctx, s); err != nil {
		return nil, fmt.Errorf("pausing: %w", err)
	}

	e.appendEvent(ctx, event.AuctionPaused, *s.CurrentPlayerID, event.PauseData{
		PlayerID:    *s.CurrentPlayerID,
		RemainingMS: remaining.Milliseconds(),
	})

	return &DispatchResult{
		Message: fmt.Sprintf("paused with %s remaining", remaining),
	}, nil
}

// resume unfreezes the auction. The bidders get a full opening window
// rather than the frozen remainder; an interruption always restarts the
// clock in full.
func (e *Engine) resume(ctx context.Context) (*DispatchResult, error) {
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	if !s.Paused {
		return nil, ErrNotPaused
	}

	now := e.clock.Now().UTC()
	s.Paused = false
	ArmedWindow(now.Add(e.cfg.OpeningWindow)).applyTo(s)
	s.UpdatedAt = now
	if err := e.saveState(ctx, s); err != nil {
		return nil, fmt.Errorf("resuming: %w", err)
	}

	e.appendEvent(ctx, event.AuctionResumed, orEmpty(s.CurrentPlayerID), struct{}{})

	return &DispatchResult{
		Message: fmt.Sprintf("resumed with a fresh %s window", e.cfg.OpeningWindow),
	}, nil
}

// exitAuction returns the auction to idle. With returnPlayer the current
// player goes back to pending (a later session can pick it up); otherwise
// it is recorded unsold.
func (e *Engine) exitAuction(ctx context.Context, returnPlayer bool) (*DispatchResult, error) {
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	if !s.Active {
		return nil, ErrNotActive
	}

	msg := "auction stopped"
	if s.CurrentPlayerID != nil {
		if returnPlayer {
			if err := e.players.ReturnToPending(ctx, *s.CurrentPlayerID); err != nil {
				return nil, fmt.Errorf("returning player to pending: %w", err)
			}
			msg = "round ended, current player returned to pending"
		} else {
			if err := e.recordUnsold(ctx, *s.CurrentPlayerID); err != nil {
				return nil, err
			}
			msg = "auction stopped, current player recorded unsold"
		}
	}

	if s.CurrentRoundID != nil {
		if err := e.rounds.SetActive(ctx, *s.CurrentRoundID, false); err != nil {
			return nil, fmt.Errorf("deactivating round: %w", err)
		}
	}

	aggregate := orEmpty(s.CurrentRoundID)
	e.resetToIdle(s)
	if err := e.saveState(ctx, s); err != nil {
		return nil, fmt.Errorf("stopping: %w", err)
	}

	e.appendEvent(ctx, event.AuctionStopped, aggregate, struct {
		ReturnedToPending bool `json:"returned_to_pending"`
	}{returnPlayer})

	return &DispatchResult{Message: msg}, nil
}

// putUp makes player the current player with a freshly armed opening
// window.
func (e *Engine) putUp(ctx context.Context, s *store.AuctionState, roundID string, player *store.Player) error {
	if err := e.players.SetCurrent(ctx, player.ID); err != nil {
		return fmt.Errorf("marking player current: %w", err)
	}

	now := e.clock.Now().UTC()
	rid := roundID
	pid := player.ID
	s.Active = true
	s.Paused = false
	s.CurrentRoundID = &rid
	s.CurrentPlayerID = &pid
	s.CurrentBid = player.BasePrice
	s.HighestBidderID = nil
	s.HighestBidderTeam = nil
	ArmedWindow(now.Add(e.cfg.OpeningWindow)).applyTo(s)
	s.UpdatedAt = now

	if err := e.saveState(ctx, s); err != nil {
		return fmt.Errorf("arming bidding window: %w", err)
	}
	return nil
}

// recordUnsold marks the player unsold and appends it to the unsold ledger.
func (e *Engine) recordUnsold(ctx context.Context, playerID string) error {
	player, err := e.players.GetByID(ctx, playerID)
	if err != nil {
		return fmt.Errorf("looking up player: %w", err)
	}

	if err := e.players.MarkUnsold(ctx, playerID); err != nil {
		return fmt.Errorf("marking player unsold: %w", err)
	}

	entry := &store.UnsoldPlayer{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Category:   player.Category,
		BasePrice:  player.BasePrice,
		RoundID:    player.RoundID,
		MarkedAt:   e.clock.Now().UTC(),
	}
	if err := e.unsold.Add(ctx, entry); err != nil {
		return fmt.Errorf("recording unsold player: %w", err)
	}

	e.appendEvent(ctx, event.PlayerUnsold, player.ID, event.PlayerUnsoldData{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Category:   player.Category,
		BasePrice:  player.BasePrice,
	})
	e.notifier.PlayerUnsold(ctx, player.Name)
	return nil
}

// completeRound closes out a round with no pending players left.
func (e *Engine) completeRound(ctx context.Context, s *store.AuctionState, roundID string) (*DispatchResult, error) {
	round, err := e.rounds.GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("looking up round: %w", err)
	}
	if err := e.rounds.Complete(ctx, roundID); err != nil {
		return nil, fmt.Errorf("completing round: %w", err)
	}

	e.resetToIdle(s)
	if err := e.saveState(ctx, s); err != nil {
		return nil, fmt.Errorf("returning auction to idle: %w", err)
	}

	e.appendEvent(ctx, event.RoundCompleted, roundID, event.RoundData{
		RoundID:     roundID,
		RoundNumber: round.Number,
	})
	e.notifier.RoundCompleted(ctx, round.Name)

	return &DispatchResult{
		Message: fmt.Sprintf("round %d completed", round.Number),
	}, nil
}

// resetToIdle clears every live field. The record itself is never deleted.
func (e *Engine) resetToIdle(s *store.AuctionState) {
	s.Active = false
	s.Paused = false
	s.CurrentRoundID = nil
	s.CurrentPlayerID = nil
	s.CurrentBid = 0
	s.HighestBidderID = nil
	s.HighestBidderTeam = nil
	IdleWindow().applyTo(s)
	s.UpdatedAt = e.clock.Now().UTC()
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
