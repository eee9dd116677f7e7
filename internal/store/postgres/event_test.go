package postgres_test

import (
	"context"
	"testing"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/event"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	err := es.Append(ctx,
		event.Event{AggregateID: "player-1", Type: event.BidPlaced, Data: []byte(`{"amount":1000000}`), Version: 1},
		event.Event{AggregateID: "player-1", Type: event.BidPlaced, Data: []byte(`{"amount":1500000}`), Version: 2},
		event.Event{AggregateID: "player-1", Type: event.PlayerSold, Data: []byte(`{"price":1500000}`), Version: 3},
		event.Event{AggregateID: "player-2", Type: event.PlayerUnsold, Data: []byte(`{}`), Version: 1},
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, err := es.Load(ctx, "player-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Load returned %d events, want 3", len(events))
	}
	// Ordered by version.
	if events[0].Type != event.BidPlaced || events[2].Type != event.PlayerSold {
		t.Errorf("unexpected order: %v, %v, %v", events[0].Type, events[1].Type, events[2].Type)
	}
	if events[0].ID == "" || events[0].CreatedAt.IsZero() {
		t.Error("expected generated ID and timestamp")
	}

	byType, err := es.LoadByType(ctx, event.PlayerUnsold)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(byType) != 1 || byType[0].AggregateID != "player-2" {
		t.Errorf("LoadByType = %+v, want one event for player-2", byType)
	}
}

func TestEventStore_AppendIsAtomic(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	// The second event's payload is not valid JSON for the JSONB column,
	// so the whole batch must roll back.
	err := es.Append(ctx,
		event.Event{AggregateID: "player-1", Type: event.BidPlaced, Data: []byte(`{"amount":1}`), Version: 1},
		event.Event{AggregateID: "player-1", Type: event.BidPlaced, Data: []byte(`not json`), Version: 2},
	)
	if err == nil {
		t.Fatal("expected append to fail")
	}

	events, loadErr := es.Load(ctx, "player-1")
	if loadErr != nil {
		t.Fatalf("Load: %v", loadErr)
	}
	if len(events) != 0 {
		t.Errorf("partial batch persisted: %d events", len(events))
	}
}
