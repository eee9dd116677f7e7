package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/clock"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// StateRepo owns the singleton auction state key. UpdateVersioned keeps the
// compare-and-swap contract with a WATCH on the key plus an explicit version
// check, so a write that lost the race always surfaces ErrVersionConflict.
type StateRepo struct {
	client *redis.Client
	clock  clock.Clock
}

func (r *StateRepo) Get(ctx context.Context) (*store.AuctionState, error) {
	var s store.AuctionState
	err := getJSON(ctx, r.client, stateKey, &s)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// First use. Seed the idle singleton; SetNX loses gracefully to a
	// concurrent bootstrap.
	seed := &store.AuctionState{
		ID:          1,
		WindowState: store.WindowIdle,
		Version:     1,
		UpdatedAt:   r.clock.Now().UTC(),
	}
	data, err := marshal(seed)
	if err != nil {
		return nil, err
	}
	if err := r.client.SetNX(ctx, stateKey, data, 0).Err(); err != nil {
		return nil, fmt.Errorf("seeding auction state: %w", err)
	}
	if err := getJSON(ctx, r.client, stateKey, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StateRepo) UpdateVersioned(ctx context.Context, s *store.AuctionState) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var cur store.AuctionState
		if err := getJSON(ctx, tx, stateKey, &cur); err != nil {
			return err
		}
		if cur.Version != s.Version {
			return store.ErrVersionConflict
		}
		next := *s
		next.Version = s.Version + 1
		next.UpdatedAt = r.clock.Now().UTC()
		data, err := marshal(&next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, stateKey, data, 0)
			return nil
		})
		return err
	}, stateKey)
	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	s.Version++
	return nil
}
