package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// RosterRepo implements store.RosterRepository with sqlx.
type RosterRepo struct {
	db *sqlx.DB
}

// NewRosterRepo returns a new RosterRepo.
func NewRosterRepo(db *sqlx.DB) *RosterRepo {
	return &RosterRepo{db: db}
}

func (r *RosterRepo) Add(ctx context.Context, e *store.RosterEntry) error {
	query := `INSERT INTO roster_entries (team_id, player_id, player_name, price, bought_at)
	           VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return r.db.QueryRowContext(ctx, query, e.TeamID, e.PlayerID, e.PlayerName, e.Price, e.BoughtAt).Scan(&e.ID)
}

func (r *RosterRepo) ListByTeam(ctx context.Context, teamID string) ([]store.RosterEntry, error) {
	var entries []store.RosterEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM roster_entries WHERE team_id = $1 ORDER BY bought_at ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing roster entries: %w", err)
	}
	return entries, nil
}

// UnsoldRepo implements store.UnsoldRepository with sqlx.
type UnsoldRepo struct {
	db *sqlx.DB
}

// NewUnsoldRepo returns a new UnsoldRepo.
func NewUnsoldRepo(db *sqlx.DB) *UnsoldRepo {
	return &UnsoldRepo{db: db}
}

func (r *UnsoldRepo) Add(ctx context.Context, u *store.UnsoldPlayer) error {
	query := `INSERT INTO unsold_players (player_id, player_name, category, base_price, round_id, marked_at)
	           VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		u.PlayerID, u.PlayerName, u.Category, u.BasePrice, u.RoundID, u.MarkedAt,
	).Scan(&u.ID)
}

func (r *UnsoldRepo) List(ctx context.Context) ([]store.UnsoldPlayer, error) {
	var players []store.UnsoldPlayer
	err := r.db.SelectContext(ctx, &players, `SELECT * FROM unsold_players ORDER BY marked_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing unsold players: %w", err)
	}
	return players, nil
}
