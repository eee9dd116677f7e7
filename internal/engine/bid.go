package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/event"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// BidResult reports an accepted bid.
type BidResult struct {
	PlayerID   string
	PlayerName string
	Amount     int64
	TeamName   string
	WindowEnd  time.Time
}

// PlaceBid places a bid on the current player for the team owned by
// ownerID. Bid attempts enter a one-at-a-time critical section; an attempt
// that cannot enter within the configured wait fails with ErrBidBusy and
// should be retried by the caller. The accepted amount is always computed
// from the state as read inside the section, never from anything the
// caller saw earlier.
func (e *Engine) PlaceBid(ctx context.Context, ownerID string) (*BidResult, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.PlaceBid",
		trace.WithAttributes(attribute.String("owner_id", ownerID)),
	)
	defer span.End()

	release, ok := e.bidLock.acquire(ctx, e.cfg.BidLockWait)
	if !ok {
		return nil, ErrBidBusy
	}
	defer release()

	s, err := e.state.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auction state: %w", err)
	}

	if !s.Active {
		return nil, ErrNotActive
	}
	if s.Paused {
		return nil, ErrAuctionPaused
	}
	if s.CurrentPlayerID == nil {
		return nil, ErrNoCurrentPlayer
	}

	team, err := e.teams.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoTeam
		}
		return nil, fmt.Errorf("looking up bidder team: %w", err)
	}
	if team.RosterCount >= team.MaxRoster {
		return nil, ErrRosterFull
	}

	player, err := e.players.GetByID(ctx, *s.CurrentPlayerID)
	if err != nil {
		return nil, fmt.Errorf("looking up current player: %w", err)
	}

	// First bid opens at the base price; later bids step by the tier
	// increment from the live bid, so two racing bidders can never
	// compute the same amount.
	var amount int64
	if s.HighestBidderID == nil {
		amount = player.BasePrice
	} else {
		amount = s.CurrentBid + e.increment(player.BasePrice)
	}

	if team.Purse < amount {
		return nil, ErrPurseTooLow
	}

	now := e.clock.Now().UTC()
	deadline := now.Add(e.cfg.ContinuationWindow)

	owner := ownerID
	teamName := team.Name
	s.CurrentBid = amount
	s.HighestBidderID = &owner
	s.HighestBidderTeam = &teamName
	ArmedWindow(deadline).applyTo(s)
	s.UpdatedAt = now

	if err := e.state.UpdateVersioned(ctx, s); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// A control action slipped in under a different lock.
			return nil, ErrBidBusy
		}
		return nil, fmt.Errorf("writing bid: %w", err)
	}

	e.appendEvent(ctx, event.BidPlaced, player.ID, event.BidPlacedData{
		PlayerID: player.ID,
		OwnerID:  ownerID,
		TeamName: team.Name,
		Amount:   amount,
	})

	e.logger.InfoContext(ctx, "bid placed",
		slog.String("player", player.Name),
		slog.String("team", team.Name),
		slog.Int64("amount", amount),
		slog.Time("window_end", deadline),
	)

	return &BidResult{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Amount:     amount,
		TeamName:   team.Name,
		WindowEnd:  deadline,
	}, nil
}
