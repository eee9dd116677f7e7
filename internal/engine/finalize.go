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

// SaleResult reports a completed sale.
type SaleResult struct {
	PlayerID   string
	PlayerName string
	TeamID     string
	TeamName   string
	Price      int64
}

// handleExpiry validates a client's "timer expired" claim against the
// authoritative deadline. The claim is honoured only if the remaining time
// is within the grace threshold, and the state is re-read immediately
// before acting so an expiry racing a late bid never closes on a stale
// highest bidder.
func (e *Engine) handleExpiry(ctx context.Context) (*DispatchResult, error) {
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	if !s.Active || s.CurrentPlayerID == nil {
		return nil, ErrNoCurrentPlayer
	}
	if s.Paused {
		// The clock is frozen; nothing can expire.
		return nil, ErrNotExpired
	}

	now := e.clock.Now().UTC()
	if windowOf(s).Remaining(now) > e.cfg.ExpiryGrace {
		return nil, ErrNotExpired
	}

	// Second read: a bid between the check above and here re-arms the
	// window, and the claim must lose to it.
	s2, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("re-reading auction state: %w", err)
	}
	if s2.CurrentPlayerID == nil {
		// Already finalized by a parallel trigger.
		return nil, ErrSuperseded
	}
	if s2.Version != s.Version {
		if windowOf(s2).Remaining(e.clock.Now().UTC()) > e.cfg.ExpiryGrace {
			return nil, ErrSuperseded
		}
	}

	if s2.HighestBidderID == nil {
		// Window ran out with no bids; same progression as "next".
		res, err := e.nextPlayer(ctx)
		if err != nil {
			return nil, err
		}
		res.Message = "window expired with no bids; " + res.Message
		return res, nil
	}

	sale, err := e.Finalize(ctx, *s2.CurrentPlayerID, *s2.HighestBidderID, s2.CurrentBid)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{
		Message: fmt.Sprintf("window expired: %s sold to %s for %d", sale.PlayerName, sale.TeamName, sale.Price),
		Sale:    sale,
	}, nil
}

// Finalize converts a winning bid into a completed sale: the player goes
// to sold, the buyer's purse is debited, a roster entry is appended and the
// live state is released for the next player. It is invoked identically by
// the admin sell action and by validated timer expiry. A failure is a
// genuine conflict and must be surfaced, never blindly retried.
func (e *Engine) Finalize(ctx context.Context, playerID, buyerID string, price int64) (*SaleResult, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Finalize",
		trace.WithAttributes(
			attribute.String("player_id", playerID),
			attribute.String("buyer_id", buyerID),
			attribute.Int64("price", price),
		),
	)
	defer span.End()

	player, err := e.players.GetByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: player %s not found", ErrSaleConflict, playerID)
		}
		return nil, fmt.Errorf("re-fetching player: %w", err)
	}
	if player.Status != store.StatusCurrent {
		return nil, fmt.Errorf("%w: player %s is %s", ErrSaleConflict, player.Name, player.Status)
	}

	team, err := e.teams.GetByOwner(ctx, buyerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: buyer %s has no team", ErrSaleConflict, buyerID)
		}
		return nil, fmt.Errorf("re-fetching buyer team: %w", err)
	}
	if team.Purse < price {
		return nil, fmt.Errorf("%w: purse %d < price %d", ErrPurseConflict, team.Purse, price)
	}
	if team.RosterCount >= team.MaxRoster {
		return nil, fmt.Errorf("%w: roster of %s is full", ErrSaleConflict, team.Name)
	}

	now := e.clock.Now().UTC()

	// Commit point. Releasing the live record first (under a version
	// check) means a bid that raced past the expiry recheck surfaces
	// here as ErrSuperseded with nothing applied yet.
	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}
	if s.CurrentPlayerID != nil && *s.CurrentPlayerID == playerID {
		if s.HighestBidderID == nil || *s.HighestBidderID != buyerID || s.CurrentBid != price {
			return nil, ErrSuperseded
		}
		s.CurrentPlayerID = nil
		s.CurrentBid = 0
		s.HighestBidderID = nil
		s.HighestBidderTeam = nil
		s.Paused = false
		IdleWindow().applyTo(s)
		s.UpdatedAt = now
		if err := e.state.UpdateVersioned(ctx, s); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				return nil, ErrSuperseded
			}
			return nil, fmt.Errorf("releasing auction state: %w", err)
		}
	}

	// The guarded sold transition is the exactly-once anchor: a second
	// finalize for the same player fails here with nothing mutated.
	if err := e.players.MarkSold(ctx, playerID, team.ID, price, now); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %s already processed", ErrSaleConflict, player.Name)
		}
		return nil, fmt.Errorf("marking player sold: %w", err)
	}

	if err := e.teams.DebitPurse(ctx, team.ID, price); err != nil {
		if errors.Is(err, store.ErrInsufficientPurse) {
			return nil, fmt.Errorf("%w: purse changed mid-flight", ErrPurseConflict)
		}
		return nil, fmt.Errorf("debiting purse: %w", err)
	}

	if err := e.rosters.Add(ctx, &store.RosterEntry{
		TeamID:     team.ID,
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Price:      price,
		BoughtAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("appending roster entry: %w", err)
	}

	e.appendEvent(ctx, event.PlayerSold, player.ID, event.PlayerSoldData{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		TeamID:     team.ID,
		TeamName:   team.Name,
		Price:      price,
	})
	e.notifier.PlayerSold(ctx, player.Name, team.Name, price)

	e.logger.InfoContext(ctx, "player sold",
		slog.String("player", player.Name),
		slog.String("team", team.Name),
		slog.Int64("price", price),
	)

	return &SaleResult{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		TeamID:     team.ID,
		TeamName:   team.Name,
		Price:      price,
	}, nil
}
