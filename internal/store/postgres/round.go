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

// RoundRepo implements store.RoundRepository with sqlx.
type RoundRepo struct {
	db *sqlx.DB
}

// NewRoundRepo returns a new RoundRepo.
func NewRoundRepo(db *sqlx.DB) *RoundRepo {
	return &RoundRepo{db: db}
}

func (r *RoundRepo) Create(ctx context.Context, rd *store.Round) error {
	rd.CreatedAt = time.Now().UTC()
	query := `INSERT INTO rounds (number, name, active, completed, created_at)
	           VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return r.db.QueryRowContext(ctx, query, rd.Number, rd.Name, rd.Active, rd.Completed, rd.CreatedAt).Scan(&rd.ID)
}

func (r *RoundRepo) GetByID(ctx context.Context, id string) (*store.Round, error) {
	var rd store.Round
	err := r.db.GetContext(ctx, &rd, `SELECT * FROM rounds WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting round: %w", err)
	}
	return &rd, nil
}

func (r *RoundRepo) List(ctx context.Context) ([]store.Round, error) {
	var rounds []store.Round
	err := r.db.SelectContext(ctx, &rounds, `SELECT * FROM rounds ORDER BY number ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	return rounds, nil
}

func (r *RoundRepo) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE rounds SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("setting round active: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *RoundRepo) Complete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rounds SET active = FALSE, completed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("completing round: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
