package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// TeamRepo implements store.TeamRepository on Redis.
type TeamRepo struct {
	client *redis.Client
}

func (r *TeamRepo) Create(ctx context.Context, team *store.Team) error {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	data, err := marshal(team)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, teamKeyPrefix+team.ID, data, 0)
		pipe.Set(ctx, teamOwnerIndex+team.OwnerID, team.ID, 0)
		pipe.SAdd(ctx, teamsKey, team.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	return nil
}

func (r *TeamRepo) GetByID(ctx context.Context, id string) (*store.Team, error) {
	var team store.Team
	if err := getJSON(ctx, r.client, teamKeyPrefix+id, &team); err != nil {
		return nil, err
	}
	count, err := r.client.LLen(ctx, rosterPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("counting roster: %w", err)
	}
	team.RosterCount = int(count)
	return &team, nil
}

func (r *TeamRepo) GetByOwner(ctx context.Context, ownerID string) (*store.Team, error) {
	id, err := r.client.Get(ctx, teamOwnerIndex+ownerID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("resolving owner: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *TeamRepo) List(ctx context.Context) ([]store.Team, error) {
	ids, err := r.client.SMembers(ctx, teamsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	teams := make([]store.Team, 0, len(ids))
	for _, id := range ids {
		team, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		teams = append(teams, *team)
	}
	return teams, nil
}

// DebitPurse subtracts amount from the team purse inside a WATCH
// transaction. The debit is refused when the purse would go negative.
func (r *TeamRepo) DebitPurse(ctx context.Context, id string, amount int64) error {
	key := teamKeyPrefix + id
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var team store.Team
		if err := getJSON(ctx, tx, key, &team); err != nil {
			return err
		}
		if team.Purse < amount {
			return store.ErrInsufficientPurse
		}
		team.Purse -= amount
		data, err := marshal(&team)
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

// AdjustPurse applies a signed delta to the team purse, refusing any
// adjustment that would leave the purse negative.
func (r *TeamRepo) AdjustPurse(ctx context.Context, id string, delta int64) error {
	key := teamKeyPrefix + id
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var team store.Team
		if err := getJSON(ctx, tx, key, &team); err != nil {
			return err
		}
		if team.Purse+delta < 0 {
			return store.ErrInsufficientPurse
		}
		team.Purse += delta
		data, err := marshal(&team)
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
