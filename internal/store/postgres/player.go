package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// PlayerRepo implements store.PlayerRepository with sqlx.
type PlayerRepo struct {
	db *sqlx.DB
}

// NewPlayerRepo returns a new PlayerRepo.
func NewPlayerRepo(db *sqlx.DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

func (r *PlayerRepo) Create(ctx context.Context, p *store.Player) error {
	p.CreatedAt = time.Now().UTC()
	if p.Status == "" {
		p.Status = store.StatusPending
	}
	query := `INSERT INTO players (round_id, name, category, base_price, status, order_index, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		p.RoundID, p.Name, p.Category, p.BasePrice, p.Status, p.OrderIndex, p.CreatedAt,
	).Scan(&p.ID)
}

func (r *PlayerRepo) GetByID(ctx context.Context, id string) (*store.Player, error) {
	var p store.Player
	err := r.db.GetContext(ctx, &p, `SELECT * FROM players WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

func (r *PlayerRepo) NextPending(ctx context.Context, roundID string) (*store.Player, error) {
	var p store.Player
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM players WHERE round_id = $1 AND status = 'pending'
		 ORDER BY order_index ASC LIMIT 1`, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoPendingPlayers
		}
		return nil, fmt.Errorf("selecting next pending player: %w", err)
	}
	return &p, nil
}

func (r *PlayerRepo) SetCurrent(ctx context.Context, id string) error {
	return r.transition(ctx, id, store.StatusPending, store.StatusCurrent)
}

func (r *PlayerRepo) MarkUnsold(ctx context.Context, id string) error {
	return r.transition(ctx, id, store.StatusCurrent, store.StatusUnsold)
}

func (r *PlayerRepo) ReturnToPending(ctx context.Context, id string) error {
	return r.transition(ctx, id, store.StatusCurrent, store.StatusPending)
}

// transition moves a player between statuses, failing with
// ErrStatusConflict unless the player is in the expected source status.
func (r *PlayerRepo) transition(ctx context.Context, id string, from, to store.PlayerStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("transitioning player %s to %s: %w", id, to, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return store.ErrStatusConflict
	}
	return nil
}

func (r *PlayerRepo) MarkSold(ctx context.Context, id, teamID string, price int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET status = 'sold', sold_to_team = $1, sold_price = $2, sold_at = $3
		 WHERE id = $4 AND status = 'current'`,
		teamID, price, at, id,
	)
	if err != nil {
		return fmt.Errorf("marking player sold: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return store.ErrStatusConflict
	}
	return nil
}

func (r *PlayerRepo) ListByRound(ctx context.Context, roundID string) ([]store.Player, error) {
	var players []store.Player
	err := r.db.SelectContext(ctx, &players,
		`SELECT * FROM players WHERE round_id = $1 ORDER BY order_index ASC`, roundID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	return players, nil
}

func (r *PlayerRepo) PendingCount(ctx context.Context, roundID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM players WHERE round_id = $1 AND status = 'pending'`, roundID)
	if err != nil {
		return 0, fmt.Errorf("counting pending players: %w", err)
	}
	return n, nil
}
