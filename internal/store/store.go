package store

import (
	"context"
	"errors"
	"time"
)

// Errors shared by all store drivers. Repositories translate backend
// failures into these so the engine can reason about conflicts without
// knowing which driver is underneath.
var (
	ErrNotFound          = errors.New("not found")
	ErrVersionConflict   = errors.New("auction state version conflict")
	ErrStatusConflict    = errors.New("player status conflict")
	ErrInsufficientPurse = errors.New("insufficient purse")
	ErrNoPendingPlayers  = errors.New("no pending players in round")
)

// PlayerStatus is the lifecycle state of a player within an auction round.
type PlayerStatus string

const (
	StatusPending PlayerStatus = "pending"
	StatusCurrent PlayerStatus = "current"
	StatusSold    PlayerStatus = "sold"
	StatusUnsold  PlayerStatus = "unsold"
)

// Team is a franchise with a budget and a roster cap. One owner per team.
type Team struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	OwnerID     string    `db:"owner_id"`
	Purse       int64     `db:"purse"`
	MaxRoster   int       `db:"max_roster"`
	RosterCount int       `db:"roster_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Player is a cricketer queued for auction within a round.
type Player struct {
	ID         string       `db:"id"`
	RoundID    string       `db:"round_id"`
	Name       string       `db:"name"`
	Category   string       `db:"category"`
	BasePrice  int64        `db:"base_price"`
	Status     PlayerStatus `db:"status"`
	OrderIndex int          `db:"order_index"`
	SoldToTeam *string      `db:"sold_to_team"`
	SoldPrice  *int64       `db:"sold_price"`
	SoldAt     *time.Time   `db:"sold_at"`
	CreatedAt  time.Time    `db:"created_at"`
}

// Round is an ordered batch of players auctioned sequentially.
type Round struct {
	ID        string    `db:"id"`
	Number    int       `db:"number"`
	Name      string    `db:"name"`
	Active    bool      `db:"active"`
	Completed bool      `db:"completed"`
	CreatedAt time.Time `db:"created_at"`
}

// RosterEntry records a completed purchase. Created exactly once per sale.
type RosterEntry struct {
	ID         string    `db:"id"`
	TeamID     string    `db:"team_id"`
	PlayerID   string    `db:"player_id"`
	PlayerName string    `db:"player_name"`
	Price      int64     `db:"price"`
	BoughtAt   time.Time `db:"bought_at"`
}

// UnsoldPlayer is a ledger entry for a player who went unsold.
type UnsoldPlayer struct {
	ID         string    `db:"id"`
	PlayerID   string    `db:"player_id"`
	PlayerName string    `db:"player_name"`
	Category   string    `db:"category"`
	BasePrice  int64     `db:"base_price"`
	RoundID    string    `db:"round_id"`
	MarkedAt   time.Time `db:"marked_at"`
}

// WindowState tags the bidding window variant persisted with the auction
// state. The deadline and the frozen remainder live in separate columns so
// the two meanings can never be confused.
type WindowState string

const (
	WindowIdle   WindowState = "idle"
	WindowArmed  WindowState = "armed"
	WindowPaused WindowState = "paused"
)

// AuctionState is the singleton live-auction record. All mutations go
// through UpdateVersioned, which performs a compare-and-swap on Version.
type AuctionState struct {
	ID                int          `db:"id"` // always 1
	Active            bool         `db:"active"`
	Paused            bool         `db:"paused"`
	CurrentRoundID    *string      `db:"current_round_id"`
	CurrentPlayerID   *string      `db:"current_player_id"`
	CurrentBid        int64        `db:"current_bid"`
	HighestBidderID   *string      `db:"highest_bidder_id"`
	HighestBidderTeam *string      `db:"highest_bidder_team"`
	WindowState       WindowState  `db:"window_state"`
	WindowDeadline    *time.Time   `db:"window_deadline"`
	PausedRemainingMS *int64       `db:"paused_remaining_ms"`
	Version           int64        `db:"version"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

// TeamRepository defines franchise persistence operations.
type TeamRepository interface {
	Create(ctx context.Context, t *Team) error
	GetByID(ctx context.Context, id string) (*Team, error)
	// GetByOwner returns the single team owned by the given identity.
	GetByOwner(ctx context.Context, ownerID string) (*Team, error)
	List(ctx context.Context) ([]Team, error)
	// DebitPurse subtracts amount, failing with ErrInsufficientPurse if
	// the purse does not cover it. The check and the write are atomic.
	DebitPurse(ctx context.Context, id string, amount int64) error
	// AdjustPurse applies an admin correction (positive or negative).
	AdjustPurse(ctx context.Context, id string, delta int64) error
}

// PlayerRepository defines auction-player persistence operations.
type PlayerRepository interface {
	Create(ctx context.Context, p *Player) error
	GetByID(ctx context.Context, id string) (*Player, error)
	// NextPending returns the pending player with the lowest order index
	// in the round, or ErrNoPendingPlayers.
	NextPending(ctx context.Context, roundID string) (*Player, error)
	// SetCurrent transitions pending -> current, ErrStatusConflict otherwise.
	SetCurrent(ctx context.Context, id string) error
	// MarkSold transitions current -> sold with sale fields, atomically.
	// A player not in current status yields ErrStatusConflict.
	MarkSold(ctx context.Context, id, teamID string, price int64, at time.Time) error
	// MarkUnsold transitions current -> unsold.
	MarkUnsold(ctx context.Context, id string) error
	// ReturnToPending transitions current -> pending.
	ReturnToPending(ctx context.Context, id string) error
	ListByRound(ctx context.Context, roundID string) ([]Player, error)
	PendingCount(ctx context.Context, roundID string) (int, error)
}

// RoundRepository defines round persistence operations.
type RoundRepository interface {
	Create(ctx context.Context, r *Round) error
	GetByID(ctx context.Context, id string) (*Round, error)
	List(ctx context.Context) ([]Round, error)
	SetActive(ctx context.Context, id string, active bool) error
	Complete(ctx context.Context, id string) error
}

// RosterRepository records purchases.
type RosterRepository interface {
	Add(ctx context.Context, e *RosterEntry) error
	ListByTeam(ctx context.Context, teamID string) ([]RosterEntry, error)
}

// UnsoldRepository is the append-only unsold-players ledger.
type UnsoldRepository interface {
	Add(ctx context.Context, u *UnsoldPlayer) error
	List(ctx context.Context) ([]UnsoldPlayer, error)
}

// StateRepository owns the singleton auction state record.
type StateRepository interface {
	// Get returns the live state, creating the idle singleton on first use.
	Get(ctx context.Context) (*AuctionState, error)
	// UpdateVersioned writes s only if the stored version still equals
	// s.Version, then increments it. ErrVersionConflict otherwise.
	UpdateVersioned(ctx context.Context, s *AuctionState) error
}
