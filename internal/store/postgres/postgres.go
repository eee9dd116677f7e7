package postgres

import (
	"context"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/clock"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/config"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

func init() {
	store.Register("postgres", open)
}

// open is the store.Driver for the "postgres" backend.
func open(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &store.Repositories{
		Teams:   NewTeamRepo(db),
		Players: NewPlayerRepo(db),
		Rounds:  NewRoundRepo(db),
		Rosters: NewRosterRepo(db),
		Unsold:  NewUnsoldRepo(db),
		State:   NewStateRepo(db, clk),
		Events:  NewEventStore(db),
		Closer:  db,
		Ping:    db.PingContext,
	}, nil
}

// Connect opens and verifies a Postgres connection with OTEL instrumentation.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.DSN()

	// Register the OTel-instrumented driver wrapping lib/pq.
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("registering otel driver: %w", err)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}
