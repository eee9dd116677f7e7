// Package redisstore provides a store.Driver backed by Redis. Records are
// stored as JSON values under typed key prefixes; multi-step mutations use
// WATCH-based optimistic transactions so guarded transitions stay atomic
// without a relational backend.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/clock"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/config"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

const (
	teamKeyPrefix   = "team:"
	teamOwnerIndex  = "team:owner:"
	teamsKey        = "teams"
	playerKeyPrefix = "player:"
	pendingPrefix   = "round:pending:" // sorted set scored by order index
	roundPlayersPfx = "round:players:"
	roundKeyPrefix  = "round:"
	roundsKey       = "rounds"
	rosterPrefix    = "roster:"
	unsoldKey       = "unsold"
	stateKey        = "auction:state"
	eventsKey       = "events"
	eventAggPrefix  = "events:aggregate:"
	eventTypePrefix = "events:type:"
)

func init() {
	store.Register("redis", open)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// open is the store.Driver for the "redis" backend.
func open(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &store.Repositories{
		Teams:   &TeamRepo{client: client},
		Players: &PlayerRepo{client: client},
		Rounds:  &RoundRepo{client: client},
		Rosters: &RosterRepo{client: client},
		Unsold:  &UnsoldRepo{client: client},
		State:   &StateRepo{client: client, clock: clk},
		Events:  &EventStore{client: client, clock: clk},
		Closer:  closerFunc(client.Close),
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}, nil
}

// getJSON loads and unmarshals the value at key into v. Missing keys map
// to store.ErrNotFound.
func getJSON(ctx context.Context, c redis.Cmdable, key string, v any) error {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		return fmt.Errorf("getting %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshalling %s: %w", key, err)
	}
	return nil
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalling: %w", err)
	}
	return string(data), nil
}
