package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	BidPlaced      Type = "auction.bid_placed"
	PlayerSold     Type = "auction.player_sold"
	PlayerUnsold   Type = "auction.player_unsold"
	RoundStarted   Type = "auction.round_started"
	RoundCompleted Type = "auction.round_completed"
	AuctionPaused  Type = "auction.paused"
	AuctionResumed Type = "auction.resumed"
	AuctionStopped Type = "auction.stopped"

	TeamRegistered Type = "team.registered"
	PurseAdjusted  Type = "team.purse_adjusted"
)

// Event is a single entry in the append-only auction transcript.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// BidPlacedData is the payload for BidPlaced events.
type BidPlacedData struct {
	PlayerID string `json:"player_id"`
	OwnerID  string `json:"owner_id"`
	TeamName string `json:"team_name"`
	Amount   int64  `json:"amount"`
}

// PlayerSoldData is the payload for PlayerSold events.
type PlayerSoldData struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	TeamID     string `json:"team_id"`
	TeamName   string `json:"team_name"`
	Price      int64  `json:"price"`
}

// PlayerUnsoldData is the payload for PlayerUnsold events.
type PlayerUnsoldData struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Category   string `json:"category"`
	BasePrice  int64  `json:"base_price"`
}

// RoundData is the payload for RoundStarted and RoundCompleted events.
type RoundData struct {
	RoundID     string `json:"round_id"`
	RoundNumber int    `json:"round_number"`
}

// PauseData is the payload for AuctionPaused events.
type PauseData struct {
	PlayerID    string `json:"player_id"`
	RemainingMS int64  `json:"remaining_ms"`
}

// TeamRegisteredData is the payload for TeamRegistered events.
type TeamRegisteredData struct {
	OwnerID  string `json:"owner_id"`
	TeamName string `json:"team_name"`
	Purse    int64  `json:"purse"`
}

// PurseAdjustedData is the payload for PurseAdjusted events.
type PurseAdjustedData struct {
	TeamID string `json:"team_id"`
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}
