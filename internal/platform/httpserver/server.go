package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	battleengine "stemstation/contexts/community-competition/battle-engine"
	battledomainerrors "stemstation/contexts/community-competition/battle-engine/domain/errors"
	battlehttp "stemstation/contexts/community-competition/battle-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "stemstation/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	battles battleengine.Module
}

func New(battles battleengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		battles: battles,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/battles", s.handleCreateBattle)
	s.mux.HandleFunc("GET /v1/battles/{battle_id}", s.handleGetBattle)
	s.mux.HandleFunc("POST /v1/battles/{battle_id}/tracks", s.handleAddTrack)
	s.mux.HandleFunc("PUT /v1/battles/{battle_id}/voting-config", s.handleUpdateVotingConfig)
	s.mux.HandleFunc("POST /v1/battles/{battle_id}/start", s.handleStartVoting)
	s.mux.HandleFunc("POST /v1/battles/{battle_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /v1/battles/{battle_id}/end", s.handleEndBattle)
	s.mux.HandleFunc("POST /v1/battles/{battle_id}/cancel", s.handleCancelBattle)
	s.mux.HandleFunc("GET /v1/battles/{battle_id}/standings", s.handleStandings)
	s.mux.HandleFunc("GET /v1/battles/{battle_id}/results", s.handleResults)
	s.mux.HandleFunc("GET /v1/battles/{battle_id}/analytics", s.handleAnalytics)
}

func (s *Server) handleCreateBattle(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req battlehttp.CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBattleError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.battles.Handler.CreateBattleHandler(r.Context(), userID, req)
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetBattle(w http.ResponseWriter, r *http.Request) {
	resp, err := s.battles.Handler.GetBattleHandler(r.Context(), r.PathValue("battle_id"))
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req battlehttp.AddTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBattleError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.battles.Handler.AddTrackHandler(r.Context(), r.PathValue("battle_id"), userID, req)
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateVotingConfig(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req battlehttp.UpdateVotingConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBattleError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.battles.Handler.UpdateVotingConfigHandler(r.Context(), r.PathValue("battle_id"), req)
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartVoting(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	resp, err := s.battles.Handler.StartVotingHandler(r.Context(), r.PathValue("battle_id"))
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req battlehttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBattleError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.battles.Handler.CastVoteHandler(
		r.Context(),
		r.PathValue("battle_id"),
		userID,
		resolveClientIP(r),
		req,
	)
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndBattle(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	resp, err := s.battles.Handler.EndBattleHandler(r.Context(), r.PathValue("battle_id"))
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelBattle(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	resp, err := s.battles.Handler.CancelBattleHandler(r.Context(), r.PathValue("battle_id"))
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.battles.Handler.StandingsHandler(r.Context(), r.PathValue("battle_id"))
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, found, err := s.battles.Handler.ResultsHandler(r.Context(), r.PathValue("battle_id"))
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	if !found {
		writeBattleError(w, http.StatusNotFound, "results_not_ready", "battle results are not computed yet")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	resp, err := s.battles.Handler.AnalyticsHandler(r.Context(), r.PathValue("battle_id"))
	if err != nil {
		writeBattleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeBattleDomainError(w http.ResponseWriter, err error) {
	var rateLimit *battledomainerrors.RateLimitError
	switch {
	case errors.As(err, &rateLimit):
		if rateLimit.RetryAfter > 0 {
			seconds := int(math.Ceil(rateLimit.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		writeBattleError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, battledomainerrors.ErrRateLimited):
		writeBattleError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, battledomainerrors.ErrBattleNotFound):
		writeBattleError(w, http.StatusNotFound, "battle_not_found", err.Error())
	case errors.Is(err, battledomainerrors.ErrTrackNotFound):
		writeBattleError(w, http.StatusNotFound, "track_not_found", err.Error())
	case errors.Is(err, battledomainerrors.ErrVoteNotFound):
		writeBattleError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, battledomainerrors.ErrInvalidBattleConfig):
		writeBattleError(w, http.StatusBadRequest, "invalid_battle_config", err.Error())
	case errors.Is(err, battledomainerrors.ErrBattleNotDraft):
		writeBattleError(w, http.StatusConflict, "battle_not_draft", err.Error())
	case errors.Is(err, battledomainerrors.ErrBattleNotVoting):
		writeBattleError(w, http.StatusConflict, "battle_not_voting", err.Error())
	case errors.Is(err, battledomainerrors.ErrBattleAlreadyEnded):
		writeBattleError(w, http.StatusConflict, "battle_already_ended", err.Error())
	case errors.Is(err, battledomainerrors.ErrBattleFull):
		writeBattleError(w, http.StatusConflict, "battle_full", err.Error())
	case errors.Is(err, battledomainerrors.ErrDuplicateTrack):
		writeBattleError(w, http.StatusConflict, "duplicate_track", err.Error())
	case errors.Is(err, battledomainerrors.ErrNotEnoughTracks):
		writeBattleError(w, http.StatusConflict, "not_enough_tracks", err.Error())
	case errors.Is(err, battledomainerrors.ErrVoteConflict):
		writeBattleError(w, http.StatusConflict, "vote_conflict", err.Error())
	case errors.Is(err, battledomainerrors.ErrIdempotencyConflict):
		writeBattleError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, battledomainerrors.ErrConflict):
		writeBattleError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, battledomainerrors.ErrBattleBusy):
		w.Header().Set("Retry-After", "1")
		writeBattleError(w, http.StatusServiceUnavailable, "battle_busy", err.Error())
	default:
		writeBattleError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeBattleError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, battlehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requireUserID(w http.ResponseWriter, r *http.Request) string {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeBattleError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
	}
	return userID
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
