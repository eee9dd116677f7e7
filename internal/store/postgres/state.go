package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/clock"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// StateRepo implements store.StateRepository with sqlx. The auction state
// is a single row (id = 1) guarded by a version column.
type StateRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewStateRepo returns a new StateRepo.
func NewStateRepo(db *sqlx.DB, clk clock.Clock) *StateRepo {
	return &StateRepo{db: db, clock: clk}
}

func (r *StateRepo) Get(ctx context.Context) (*store.AuctionState, error) {
	var s store.AuctionState
	err := r.db.GetContext(ctx, &s, `SELECT * FROM auction_state WHERE id = 1`)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting auction state: %w", err)
	}

	// First use: create the idle singleton. ON CONFLICT covers a racing
	// bootstrap on another connection.
	now := r.clock.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO auction_state (id, updated_at) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`, now)
	if err != nil {
		return nil, fmt.Errorf("initializing auction state: %w", err)
	}
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM auction_state WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("re-reading auction state: %w", err)
	}
	return &s, nil
}

// UpdateVersioned writes s only if the stored version still equals
// s.Version. On success the version advances, both in the row and in s.
func (r *StateRepo) UpdateVersioned(ctx context.Context, s *store.AuctionState) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auction_state SET
			active = $1, paused = $2,
			current_round_id = $3, current_player_id = $4,
			current_bid = $5, highest_bidder_id = $6, highest_bidder_team = $7,
			window_state = $8, window_deadline = $9, paused_remaining_ms = $10,
			version = version + 1, updated_at = $11
		 WHERE id = 1 AND version = $12`,
		s.Active, s.Paused,
		s.CurrentRoundID, s.CurrentPlayerID,
		s.CurrentBid, s.HighestBidderID, s.HighestBidderTeam,
		s.WindowState, s.WindowDeadline, s.PausedRemainingMS,
		s.UpdatedAt, s.Version,
	)
	if err != nil {
		return fmt.Errorf("updating auction state: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return store.ErrVersionConflict
	}
	s.Version++
	return nil
}
