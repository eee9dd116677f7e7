package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// PlayerRepo implements store.PlayerRepository on Redis. Pending players
// live in a per-round sorted set scored by order index so NextPending is a
// single range read.
type PlayerRepo struct {
	client *redis.Client
}

func (r *PlayerRepo) Create(ctx context.Context, p *store.Player) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	data, err := marshal(p)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, playerKeyPrefix+p.ID, data, 0)
		pipe.SAdd(ctx, roundPlayersPfx+p.RoundID, p.ID)
		if p.Status == store.StatusPending {
			pipe.ZAdd(ctx, pendingPrefix+p.RoundID, redis.Z{
				Score:  float64(p.OrderIndex),
				Member: p.ID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

func (r *PlayerRepo) GetByID(ctx context.Context, id string) (*store.Player, error) {
	var p store.Player
	if err := getJSON(ctx, r.client, playerKeyPrefix+id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PlayerRepo) NextPending(ctx context.Context, roundID string) (*store.Player, error) {
	ids, err := r.client.ZRange(ctx, pendingPrefix+roundID, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("reading pending queue: %w", err)
	}
	if len(ids) == 0 {
		return nil, store.ErrNoPendingPlayers
	}
	return r.GetByID(ctx, ids[0])
}

// transition moves a player from one status to another inside a WATCH
// transaction, keeping the pending queue in step with the status change.
func (r *PlayerRepo) transition(ctx context.Context, id string, from, to store.PlayerStatus, mutate func(*store.Player)) error {
	key := playerKeyPrefix + id
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var p store.Player
		if err := getJSON(ctx, tx, key, &p); err != nil {
			return err
		}
		if p.Status != from {
			return store.ErrStatusConflict
		}
		p.Status = to
		if mutate != nil {
			mutate(&p)
		}
		data, err := marshal(&p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if from == store.StatusPending {
				pipe.ZRem(ctx, pendingPrefix+p.RoundID, p.ID)
			}
			if to == store.StatusPending {
				pipe.ZAdd(ctx, pendingPrefix+p.RoundID, redis.Z{
					Score:  float64(p.OrderIndex),
					Member: p.ID,
				})
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrStatusConflict
	}
	return err
}

func (r *PlayerRepo) SetCurrent(ctx context.Context, id string) error {
	return r.transition(ctx, id, store.StatusPending, store.StatusCurrent, nil)
}

func (r *PlayerRepo) MarkSold(ctx context.Context, id, teamID string, price int64, at time.Time) error {
	return r.transition(ctx, id, store.StatusCurrent, store.StatusSold, func(p *store.Player) {
		p.SoldToTeam = &teamID
		p.SoldPrice = &price
		soldAt := at
		p.SoldAt = &soldAt
	})
}

func (r *PlayerRepo) MarkUnsold(ctx context.Context, id string) error {
	return r.transition(ctx, id, store.StatusCurrent, store.StatusUnsold, nil)
}

func (r *PlayerRepo) ReturnToPending(ctx context.Context, id string) error {
	return r.transition(ctx, id, store.StatusCurrent, store.StatusPending, nil)
}

func (r *PlayerRepo) ListByRound(ctx context.Context, roundID string) ([]store.Player, error) {
	ids, err := r.client.SMembers(ctx, roundPlayersPfx+roundID).Result()
	if err != nil {
		return nil, fmt.Errorf("listing round players: %w", err)
	}
	players := make([]store.Player, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		players = append(players, *p)
	}
	return players, nil
}

func (r *PlayerRepo) PendingCount(ctx context.Context, roundID string) (int, error) {
	n, err := r.client.ZCard(ctx, pendingPrefix+roundID).Result()
	if err != nil {
		return 0, fmt.Errorf("counting pending players: %w", err)
	}
	return int(n), nil
}
