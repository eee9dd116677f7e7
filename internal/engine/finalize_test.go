package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/engine"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

func TestExpiryRejectedWhileTimeRemains(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedAuction(store.Player{ID: "p1", Name: "Kohli", BasePrice: 2_000_000})
	f.start(t)

	// 59s left on a 60s window: far outside the 500ms grace.
	f.clk.Advance(time.Second)
	if _, err := f.eng.Dispatch(ctx, engine.ActionExpired, engine.DispatchParams{}); !errors.Is(err, engine.ErrNotExpired) {
		t.Errorf("error = %v, want ErrNotExpired", err)
	}

	// 1s left is still beyond the grace threshold.
	f.clk.Advance(58 * time.Second)
	if _, err := f.eng.Dispatch(ctx, engine.ActionExpired, engine.DispatchParams{}); !errors.Is(err, engine.ErrNotExpired) {
		t.Errorf("error = %v, want ErrNotExpired", err)
	}
}

func TestExpiryWithinGraceSellsToHighestBidder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedAuction(store.Player{ID: "p1", Name: "Kohli", BasePrice: 2_000_000})
	f.start(t)

	if _, err := f.eng.PlaceBid(ctx, "owner-a"); err != nil {
		t.Fatalf("bid: %v", err)
	}

	// 400ms before the deadline falls inside the 500ms grace.
	f.clk.Advance(15*time.Second - 400*time.Millisecond)
	res, err := f.eng.Dispatch(ctx, engine.ActionExpired, engine.DispatchParams{})
	if err != nil {
		t.Fatalf("expired: %v", err)
	}
	if res.Sale == nil || res.Sale.TeamID != "team-a" || res.Sale.Price != 2_000_000 {
		t.Errorf("sale = %+v, want team-a at 2000000", res.Sale)
	}

	p, _ := (*memPlayers)(f.mem).GetByID(ctx, "p1")
	if p.Status != store.StatusSold {
		t.Errorf("player status = %q, want sold", p.Status)
	}
}

func TestExpiryWithNoBidsAdvancesLikeNext(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedAuction(
		store.Player{ID: "p1", Name: "Kohli", BasePrice: 2_000_000, OrderIndex: 0},
		store.Player{ID: "p2", Name: "Bumrah", BasePrice: 1_500_000, OrderIndex: 1},
	)
	f.start(t)

	f.clk.Advance(61 * time.Second)
	res, err := f.eng.Dispatch(ctx, engine.ActionExpired, engine.DispatchParams{})
	if err != nil {
		t.Fatalf("expired: %v", err)
	}
	if !strings.HasPrefix(res.Message, "window expired with no bids") {
		t.Errorf("message = %q", res.Message)
	}

	p1, _ := (*memPlayers)(f.mem).GetByID(ctx, "p1")
	if p1.Status != store.StatusUnsold {
		t.Errorf("p1 status = %q, want unsold", p1.Status)
	}
	snap, _ := f.eng.State(ctx)
	if snap.State.CurrentPlayerID == nil || *snap.State.CurrentPlayerID != "p2" {
		t.Error("next player should be up after a no-bid expiry")
	}
}

func TestExpiryClaimLosesToBidBetweenReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedAuction(store.Player{ID: "p1", Name: "Kohli", BasePrice: 2_000_000})
	f.start(t)

	if _, err := f.eng.PlaceBid(ctx, "owner-a"); err != nil {
		t.Fatalf("bid: %v", err)
	}
	f.clk.Advance(15*time.Second - 400*time.Millisecond)

	// A late bid lands between the claim's first read and its
	// revalidation read, re-arming the window past the grace threshold.
	var reads int
	f.state.beforeGet = func(int) {
		reads++
		if reads != 2 {
			return
		}
		s, err := f.state.StateRepository.Get(ctx)
		if err != nil {
			t.Errorf("reading state in hook: %v", err)
			return
		}
		owner := "owner-b"
		team := "Chennai Kings"
		deadline := f.clk.Now().UTC().Add(15 * time.Second)
		s.CurrentBid = 2_500_000
		s.HighestBidderID = &owner
		s.HighestBidderTeam = &team
		s.WindowState = store.WindowArmed
		s.WindowDeadline = &deadline
		if err := f.state.StateRepository.UpdateVersioned(ctx, s); err != nil {
			t.Errorf("applying late bid: %v", err)
		}
	}

	_, err := f.eng.Dispatch(ctx, engine.ActionExpired, engine.DispatchParams{})
	if !errors.Is(err, engine.ErrSuperseded) {
		t.Fatalf("error = %v, want ErrSuperseded", err)
	}
	f.state.beforeGet = nil

	// Nothing may have been finalized: the player stays current and the
	// late bid stands.
	p, _ := (*memPlayers)(f.mem).GetByID(ctx, "p1")
	if p.Status != store.StatusCurrent {
		t.Errorf("player status = %q, want current", p.Status)
	}
	teamB, _ := (*memTeams)(f.mem).GetByID(ctx, "team-b")
	if teamB.Purse != 100_000_000 {
		t.Errorf("team-b purse = %d, want untouched", teamB.Purse)
	}
	snap, _ := f.eng.State(ctx)
	if snap.State.HighestBidderID == nil || *snap.State.HighestBidderID != "owner-b" {
		t.Error("late bid must remain the highest")
	}
	if snap.State.CurrentBid != 2_500_000 {
		t.Errorf("current bid = %d, want the late bid amount", snap.State.CurrentBid)
	}
}

func TestExpiryWhilePaused(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedAuction(store.Player{ID: "p1", Name: "Kohli", BasePrice: 2_000_000})
	f.start(t)

	if _, err := f.eng.Dispatch(ctx, engine.ActionPause, engine.DispatchParams{}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	f.clk.Advance(time.Hour)
	if _, err := f.eng.Dispatch(ctx, engine.ActionExpired, engine.DispatchParams{}); !errors.Is(err, engine.ErrNotExpired) {
		t.Errorf("error = %v, want ErrNotExpired", err)
	}
}

func TestExpiryWithNothingLive(t *testing.T) {
	f := newFixture()
	if _, err := f.eng.Dispatch(context.Background(), engine.ActionExpired, engine.DispatchParams{}); !errors.Is(err, engine.ErrNoCurrentPlayer) {
		t.Errorf("error = %v, want ErrNoCurrentPlayer", err)
	}
}

func TestFinalizeIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedAuction(store.Player{ID: "p1", Name: "Kohli", BasePrice: 2_000_000})
	f.start(t)

	if _, err := f.eng.PlaceBid(ctx, "owner-a"); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if _, err := f.eng.Finalize(ctx, "p1", "owner-a", 2_000_000); err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	// A second finalize for the same player must conflict with nothing
	// applied twice.
	_, err := f.eng.Finalize(ctx, "p1", "owner-a", 2_000_000)
	if !errors.Is(err, engine.ErrSaleConflict) {
		t.Fatalf("second finalize error = %v, want ErrSaleConflict", err)
	}

	team, _ := (*memTeams)(f.mem).GetByID(ctx, "team-a")
	if team.Purse != 98_000_000 {
		t.Errorf("purse = %d, want a single debit to 98000000", team.Purse)
	}
	roster, _ := (*memRosters)(f.mem).ListByTeam(ctx, "team-a")
	if len(roster) != 1 {
		t.Errorf("roster entries = %d, want exactly 1", len(roster))
	}
}

func TestFinalizeSupersededByNewerBid(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedAuction(store.Player{ID: "p1", Name: "Kohli", BasePrice: 2_000_000})
	f.start(t)

	if _, err := f.eng.PlaceBid(ctx, "owner-a"); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := f.eng.PlaceBid(ctx, "owner-b"); err != nil {
		t.Fatalf("bid: %v", err)
	}

	// A finalize carrying the overtaken bid must lose to the live state.
	_, err := f.eng.Finalize(ctx, "p1", "owner-a", 2_000_000)
	if !errors.Is(err, engine.ErrSuperseded) {
		t.Fatalf("error = %v, want ErrSuperseded", err)
	}

	// Nothing may have been applied for the losing finalize.
	p, _ := (*memPlayers)(f.mem).GetByID(ctx, "p1")
	if p.Status != store.StatusCurrent {
		t.Errorf("player status = %q, want still current", p.Status)
	}
	team, _ := (*memTeams)(f.mem).GetByID(ctx, "team-a")
	if team.Purse != 100_000_000 {
		t.Errorf("purse = %d, want untouched", team.Purse)
	}
}

func TestFinalizeBuyerCannotAffordAnymore(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedAuction(store.Player{ID: "p1", Name: "Kohli", BasePrice: 2_000_000})
	f.start(t)

	if _, err := f.eng.PlaceBid(ctx, "owner-a"); err != nil {
		t.Fatalf("bid: %v", err)
	}
	// The purse shrinks between the bid and the finalize.
	if err := (*memTeams)(f.mem).AdjustPurse(ctx, "team-a", -99_500_000); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	_, err := f.eng.Finalize(ctx, "p1", "owner-a", 2_000_000)
	if !errors.Is(err, engine.ErrPurseConflict) {
		t.Errorf("error = %v, want ErrPurseConflict", err)
	}
}
