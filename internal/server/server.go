// Package server exposes the auction over HTTP. Bidders authenticate with
// an owner header, control actions with the admin bearer token.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/config"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/engine"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

// OwnerHeader carries the bidder's identity on bid requests.
const OwnerHeader = "X-Owner-ID"

// Auctioneer is the live-auction surface the server needs.
type Auctioneer interface {
	PlaceBid(ctx context.Context, ownerID string) (*engine.BidResult, error)
	Dispatch(ctx context.Context, action engine.Action, params engine.DispatchParams) (*engine.DispatchResult, error)
	State(ctx context.Context) (*engine.Snapshot, error)
}

// Franchises is the team-management surface the server needs.
type Franchises interface {
	RegisterTeam(ctx context.Context, ownerID, name string, purse int64, maxRoster int) (*store.Team, error)
	AdjustPurse(ctx context.Context, teamID string, delta int64, reason string) error
	ListTeams(ctx context.Context) ([]store.Team, error)
	TeamRoster(ctx context.Context, teamID string) ([]store.RosterEntry, error)
}

// Server routes auction and franchise requests.
type Server struct {
	cfg        config.ServerConfig
	auctioneer Auctioneer
	franchises Franchises
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New creates a Server.
func New(cfg config.ServerConfig, auctioneer Auctioneer, franchises Franchises, logger *slog.Logger, tp trace.TracerProvider) *Server {
	return &Server{
		cfg:        cfg,
		auctioneer: auctioneer,
		franchises: franchises,
		logger:     logger,
		tracer:     tp.Tracer("github.com/jayppatell1996-lgtm/cricket-auction/internal/server"),
	}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/bid", s.handleBid)
	mux.HandleFunc("POST /api/control", s.requireAdmin(s.handleControl))
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/teams", s.handleListTeams)
	mux.HandleFunc("POST /api/teams", s.requireAdmin(s.handleRegisterTeam))
	mux.HandleFunc("POST /api/teams/{id}/purse", s.requireAdmin(s.handleAdjustPurse))
	mux.HandleFunc("GET /api/teams/{id}/roster", s.handleTeamRoster)
}

// requireAdmin guards an endpoint with the configured bearer token.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.cfg.AdminToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		next(w, r)
	}
}

type bidResponse struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Amount     int64     `json:"amount"`
	TeamName   string    `json:"team_name"`
	WindowEnd  time.Time `json:"window_end"`
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "Server.handleBid")
	defer span.End()

	ownerID := r.Header.Get(OwnerHeader)
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, OwnerHeader+" header required")
		return
	}

	res, err := s.auctioneer.PlaceBid(ctx, ownerID)
	if err != nil {
		s.writeEngineError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, bidResponse{
		PlayerID:   res.PlayerID,
		PlayerName: res.PlayerName,
		Amount:     res.Amount,
		TeamName:   res.TeamName,
		WindowEnd:  res.WindowEnd,
	})
}

type controlRequest struct {
	Action  string `json:"action"`
	RoundID string `json:"round_id,omitempty"`
}

type saleResponse struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	TeamID     string `json:"team_id"`
	TeamName   string `json:"team_name"`
	Price      int64  `json:"price"`
}

type controlResponse struct {
	Message string        `json:"message"`
	Sale    *saleResponse `json:"sale,omitempty"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "Server.handleControl")
	defer span.End()

	var req controlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	res, err := s.auctioneer.Dispatch(ctx, engine.Action(req.Action), engine.DispatchParams{RoundID: req.RoundID})
	if err != nil {
		s.writeEngineError(ctx, w, err)
		return
	}

	resp := controlResponse{Message: res.Message}
	if res.Sale != nil {
		resp.Sale = &saleResponse{
			PlayerID:   res.Sale.PlayerID,
			PlayerName: res.Sale.PlayerName,
			TeamID:     res.Sale.TeamID,
			TeamName:   res.Sale.TeamName,
			Price:      res.Sale.Price,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type stateResponse struct {
	Active            bool    `json:"active"`
	Paused            bool    `json:"paused"`
	CurrentRoundID    *string `json:"current_round_id"`
	CurrentPlayerID   *string `json:"current_player_id"`
	CurrentBid        int64   `json:"current_bid"`
	HighestBidderTeam *string `json:"highest_bidder_team"`
	WindowState       string  `json:"window_state"`
	RemainingMS       int64   `json:"remaining_ms"`
	Version           int64   `json:"version"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.auctioneer.State(r.Context())
	if err != nil {
		s.writeEngineError(r.Context(), w, err)
		return
	}
	remaining := snap.Remaining
	if remaining < 0 {
		remaining = 0
	}
	st := snap.State
	writeJSON(w, http.StatusOK, stateResponse{
		Active:            st.Active,
		Paused:            st.Paused,
		CurrentRoundID:    st.CurrentRoundID,
		CurrentPlayerID:   st.CurrentPlayerID,
		CurrentBid:        st.CurrentBid,
		HighestBidderTeam: st.HighestBidderTeam,
		WindowState:       string(st.WindowState),
		RemainingMS:       remaining.Milliseconds(),
		Version:           st.Version,
	})
}

type registerTeamRequest struct {
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	Purse     int64  `json:"purse"`
	MaxRoster int    `json:"max_roster"`
}

type teamResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerID     string `json:"owner_id"`
	Purse       int64  `json:"purse"`
	MaxRoster   int    `json:"max_roster"`
	RosterCount int    `json:"roster_count"`
}

func (s *Server) handleRegisterTeam(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "Server.handleRegisterTeam")
	defer span.End()

	var req registerTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OwnerID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "owner_id and name are required")
		return
	}
	if req.Purse <= 0 || req.MaxRoster <= 0 {
		writeError(w, http.StatusBadRequest, "purse and max_roster must be positive")
		return
	}

	team, err := s.franchises.RegisterTeam(ctx, req.OwnerID, req.Name, req.Purse, req.MaxRoster)
	if err != nil {
		s.writeEngineError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTeamResponse(*team))
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.franchises.ListTeams(r.Context())
	if err != nil {
		s.writeEngineError(r.Context(), w, err)
		return
	}
	out := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, toTeamResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

type adjustPurseRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (s *Server) handleAdjustPurse(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "Server.handleAdjustPurse")
	defer span.End()

	teamID := r.PathValue("id")
	var req adjustPurseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}
	if err := s.franchises.AdjustPurse(ctx, teamID, req.Delta, req.Reason); err != nil {
		s.writeEngineError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "adjusted"})
}

type rosterEntryResponse struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Price      int64     `json:"price"`
	BoughtAt   time.Time `json:"bought_at"`
}

func (s *Server) handleTeamRoster(w http.ResponseWriter, r *http.Request) {
	entries, err := s.franchises.TeamRoster(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(r.Context(), w, err)
		return
	}
	out := make([]rosterEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, rosterEntryResponse{
			PlayerID:   e.PlayerID,
			PlayerName: e.PlayerName,
			Price:      e.Price,
			BoughtAt:   e.BoughtAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toTeamResponse(t store.Team) teamResponse {
	return teamResponse{
		ID:          t.ID,
		Name:        t.Name,
		OwnerID:     t.OwnerID,
		Purse:       t.Purse,
		MaxRoster:   t.MaxRoster,
		RosterCount: t.RosterCount,
	}
}

