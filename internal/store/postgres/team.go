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

// TeamRepo implements store.TeamRepository with sqlx.
type TeamRepo struct {
	db *sqlx.DB
}

// NewTeamRepo returns a new TeamRepo.
func NewTeamRepo(db *sqlx.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

const teamColumns = `t.id, t.name, t.owner_id, t.purse, t.max_roster, t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM roster_entries r WHERE r.team_id = t.id) AS roster_count`

func (r *TeamRepo) Create(ctx context.Context, t *store.Team) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	query := `INSERT INTO teams (name, owner_id, purse, max_roster, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	return r.db.QueryRowContext(ctx, query, t.Name, t.OwnerID, t.Purse, t.MaxRoster, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
}

func (r *TeamRepo) GetByID(ctx context.Context, id string) (*store.Team, error) {
	var t store.Team
	err := r.db.GetContext(ctx, &t, `SELECT `+teamColumns+` FROM teams t WHERE t.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting team: %w", err)
	}
	return &t, nil
}

func (r *TeamRepo) GetByOwner(ctx context.Context, ownerID string) (*store.Team, error) {
	var t store.Team
	err := r.db.GetContext(ctx, &t, `SELECT `+teamColumns+` FROM teams t WHERE t.owner_id = $1`, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting team by owner: %w", err)
	}
	return &t, nil
}

func (r *TeamRepo) List(ctx context.Context) ([]store.Team, error) {
	var teams []store.Team
	err := r.db.SelectContext(ctx, &teams, `SELECT `+teamColumns+` FROM teams t ORDER BY t.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return teams, nil
}

// DebitPurse subtracts amount only when the purse covers it; the guard and
// the write are one statement, so a stale purse read can never overdraw.
func (r *TeamRepo) DebitPurse(ctx context.Context, id string, amount int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE teams SET purse = purse - $1, updated_at = $2 WHERE id = $3 AND purse >= $1`,
		amount, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("debiting purse: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return store.ErrInsufficientPurse
	}
	return nil
}

func (r *TeamRepo) AdjustPurse(ctx context.Context, id string, delta int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE teams SET purse = purse + $1, updated_at = $2 WHERE id = $3 AND purse + $1 >= 0`,
		delta, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("adjusting purse: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return store.ErrInsufficientPurse
	}
	return nil
}
