package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// RosterRepo implements store.RosterRepository. Entries are appended to a
// per-team list so roster size is an LLEN away.
type RosterRepo struct {
	client *redis.Client
}

func (r *RosterRepo) Add(ctx context.Context, e *store.RosterEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	data, err := marshal(e)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, rosterPrefix+e.TeamID, data).Err(); err != nil {
		return fmt.Errorf("adding roster entry: %w", err)
	}
	return nil
}

func (r *RosterRepo) ListByTeam(ctx context.Context, teamID string) ([]store.RosterEntry, error) {
	items, err := r.client.LRange(ctx, rosterPrefix+teamID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing roster: %w", err)
	}
	entries := make([]store.RosterEntry, 0, len(items))
	for _, item := range items {
		var e store.RosterEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshalling roster entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// UnsoldRepo implements store.UnsoldRepository as an append-only list.
type UnsoldRepo struct {
	client *redis.Client
}

func (r *UnsoldRepo) Add(ctx context.Context, u *store.UnsoldPlayer) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	data, err := marshal(u)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, unsoldKey, data).Err(); err != nil {
		return fmt.Errorf("adding unsold entry: %w", err)
	}
	return nil
}

func (r *UnsoldRepo) List(ctx context.Context) ([]store.UnsoldPlayer, error) {
	items, err := r.client.LRange(ctx, unsoldKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing unsold players: %w", err)
	}
	entries := make([]store.UnsoldPlayer, 0, len(items))
	for _, item := range items {
		var u store.UnsoldPlayer
		if err := json.Unmarshal([]byte(item), &u); err != nil {
			return nil, fmt.Errorf("unmarshalling unsold entry: %w", err)
		}
		entries = append(entries, u)
	}
	return entries, nil
}
