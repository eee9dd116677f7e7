package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// RoundRepo implements store.RoundRepository on Redis.
type RoundRepo struct {
	client *redis.Client
}

func (r *RoundRepo) Create(ctx context.Context, round *store.Round) error {
	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	data, err := marshal(round)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, roundKeyPrefix+round.ID, data, 0)
		pipe.SAdd(ctx, roundsKey, round.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating round: %w", err)
	}
	return nil
}

func (r *RoundRepo) GetByID(ctx context.Context, id string) (*store.Round, error) {
	var round store.Round
	if err := getJSON(ctx, r.client, roundKeyPrefix+id, &round); err != nil {
		return nil, err
	}
	return &round, nil
}

func (r *RoundRepo) List(ctx context.Context) ([]store.Round, error) {
	ids, err := r.client.SMembers(ctx, roundsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	rounds := make([]store.Round, 0, len(ids))
	for _, id := range ids {
		round, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		rounds = append(rounds, *round)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Number < rounds[j].Number })
	return rounds, nil
}

func (r *RoundRepo) update(ctx context.Context, id string, mutate func(*store.Round)) error {
	key := roundKeyPrefix + id
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var round store.Round
		if err := getJSON(ctx, tx, key, &round); err != nil {
			return err
		}
		mutate(&round)
		data, err := marshal(&round)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrVersionConflict
	}
	return err
}

func (r *RoundRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, func(round *store.Round) { round.Active = active })
}

func (r *RoundRepo) Complete(ctx context.Context, id string) error {
	return r.update(ctx, id, func(round *store.Round) {
		round.Active = false
		round.Completed = true
	})
}
