// Package franchise manages team registration, purses and rosters outside
// of the live bidding path.
package franchise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/event"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

var (
	// ErrOwnerHasTeam means the owner already registered a franchise.
	ErrOwnerHasTeam = errors.New("owner already has a team")
)

// Manager handles franchise operations.
type Manager struct {
	teams   store.TeamRepository
	rosters store.RosterRepository
	events  event.Store
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewManager returns a new franchise Manager.
func NewManager(teams store.TeamRepository, rosters store.RosterRepository, events event.Store, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		teams:   teams,
		rosters: rosters,
		events:  events,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jayppatell1996-lgtm/cricket-auction/internal/franchise"),
	}
}

// RegisterTeam creates a franchise for an owner. One team per owner.
func (m *Manager) RegisterTeam(ctx context.Context, ownerID, name string, purse int64, maxRoster int) (*store.Team, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RegisterTeam",
		trace.WithAttributes(
			attribute.String("owner_id", ownerID),
			attribute.String("team_name", name),
		),
	)
	defer span.End()

	if _, err := m.teams.GetByOwner(ctx, ownerID); err == nil {
		return nil, ErrOwnerHasTeam
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking owner: %w", err)
	}

	t := &store.Team{
		Name:      name,
		OwnerID:   ownerID,
		Purse:     purse,
		MaxRoster: maxRoster,
	}
	if err := m.teams.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}

	data, _ := json.Marshal(event.TeamRegisteredData{
		OwnerID:  ownerID,
		TeamName: name,
		Purse:    purse,
	})
	evt := event.Event{
		AggregateID: t.ID,
		Type:        event.TeamRegistered,
		Data:        data,
		Version:     1,
	}
	if err := m.events.Append(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append team registered event", slog.Any("error", err))
	}

	m.logger.InfoContext(ctx, "team registered",
		slog.String("team_id", t.ID),
		slog.String("team", name),
		slog.Int64("purse", purse),
	)
	return t, nil
}

// AdjustPurse applies an admin correction to a team purse. A negative delta
// that would overdraw the purse is rejected by the store.
func (m *Manager) AdjustPurse(ctx context.Context, teamID string, delta int64, reason string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AdjustPurse",
		trace.WithAttributes(
			attribute.String("team_id", teamID),
			attribute.Int64("delta", delta),
		),
	)
	defer span.End()

	if err := m.teams.AdjustPurse(ctx, teamID, delta); err != nil {
		return fmt.Errorf("adjusting purse: %w", err)
	}

	data, _ := json.Marshal(event.PurseAdjustedData{
		TeamID: teamID,
		Delta:  delta,
		Reason: reason,
	})
	evt := event.Event{
		AggregateID: teamID,
		Type:        event.PurseAdjusted,
		Data:        data,
		Version:     0,
	}
	if err := m.events.Append(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append purse adjusted event", slog.Any("error", err))
	}

	m.logger.InfoContext(ctx, "purse adjusted",
		slog.String("team_id", teamID),
		slog.Int64("delta", delta),
		slog.String("reason", reason),
	)
	return nil
}

// GetTeam returns a team by ID.
func (m *Manager) GetTeam(ctx context.Context, teamID string) (*store.Team, error) {
	return m.teams.GetByID(ctx, teamID)
}

// ListTeams returns all registered teams.
func (m *Manager) ListTeams(ctx context.Context) ([]store.Team, error) {
	return m.teams.List(ctx)
}

// TeamRoster returns the purchases made by a team.
func (m *Manager) TeamRoster(ctx context.Context, teamID string) ([]store.RosterEntry, error) {
	if _, err := m.teams.GetByID(ctx, teamID); err != nil {
		return nil, err
	}
	return m.rosters.ListByTeam(ctx, teamID)
}
