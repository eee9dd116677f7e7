package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/clock"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/event"
)

// EventStore implements event.Store on Redis. The transcript is a global
// list; per-aggregate and per-type lists hold copies so both load paths are
// plain range reads.
type EventStore struct {
	client *redis.Client
	clock  clock.Clock
}

func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	now := s.clock.Now().UTC()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range events {
			e := &events[i]
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			data, err := marshal(e)
			if err != nil {
				return err
			}
			pipe.RPush(ctx, eventsKey, data)
			pipe.RPush(ctx, eventAggPrefix+e.AggregateID, data)
			pipe.RPush(ctx, eventTypePrefix+string(e.Type), data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending events: %w", err)
	}
	return nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	return s.loadList(ctx, eventAggPrefix+aggregateID)
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	return s.loadList(ctx, eventTypePrefix+string(eventType))
}

func (s *EventStore) loadList(ctx context.Context, key string) ([]event.Event, error) {
	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading events from %s: %w", key, err)
	}
	events := make([]event.Event, 0, len(items))
	for _, item := range items {
		var e event.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshalling event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}
