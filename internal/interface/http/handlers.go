package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/DeclineZ/brain-train-sub002/internal/application/command"
	"github.com/DeclineZ/brain-train-sub002/internal/application/query"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
)

// Error codes of the API envelope.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotAuthorized     = "NOT_AUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodePersistence       = "PERSISTENCE_ERROR"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)

// IdempotencyKeyHeader lets clients retry a submission safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// handleReady runs the dependency checks.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSubmitSession records one finished play session.
func (s *Server) handleSubmitSession(w http.ResponseWriter, r *http.Request, userID string) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, CodeValidation, "could not read request body", err.Error())
		return
	}

	result, err := s.deps.SubmitSession.Handle(r.Context(), command.SubmitSessionCommand{
		UserID:         userID,
		GameID:         r.PathValue("gameId"),
		RawData:        raw,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyProcessed {
		status = http.StatusOK
	}
	writeJSON(w, r, status, result)
}

// handlePerformCheckin records today's checkin.
func (s *Server) handlePerformCheckin(w http.ResponseWriter, r *http.Request, userID string) {
	result, err := s.deps.PerformCheckin.Handle(r.Context(), command.PerformCheckinCommand{UserID: userID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetCheckinStatus(w http.ResponseWriter, r *http.Request, userID string) {
	data, err := s.deps.CheckinStatus.Handle(r.Context(), query.GetCheckinStatusQuery{UserID: userID})
	s.respond(w, r, data, err)
}

func (s *Server) handleGetCheckinCalendar(w http.ResponseWriter, r *http.Request, userID string) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, CodeValidation, "year must be a number", "")
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, CodeValidation, "month must be a number", "")
		return
	}

	data, err := s.deps.CheckinCalendar.Handle(r.Context(), query.GetCheckinCalendarQuery{
		UserID: userID,
		Year:   year,
		Month:  month,
	})
	s.respond(w, r, data, err)
}

func (s *Server) handleGetBadges(w http.ResponseWriter, r *http.Request, userID string) {
	data, err := s.deps.Badges.Handle(r.Context(), query.GetBadgesQuery{UserID: userID})
	s.respond(w, r, data, err)
}

func (s *Server) handleGetDailyMissions(w http.ResponseWriter, r *http.Request, userID string) {
	data, err := s.deps.DailyMissions.Handle(r.Context(), query.GetDailyMissionsQuery{UserID: userID})
	s.respond(w, r, data, err)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, CodeValidation, "limit must be a number", "")
		return
	}
	data, err := s.deps.Wallet.Handle(r.Context(), query.GetWalletQuery{UserID: userID, Limit: limit})
	s.respond(w, r, data, err)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, userID string) {
	data, err := s.deps.Profile.Handle(r.Context(), query.GetProfileQuery{UserID: userID})
	s.respond(w, r, data, err)
}

func (s *Server) handleGetGameStars(w http.ResponseWriter, r *http.Request, userID string) {
	data, err := s.deps.GameStars.Handle(r.Context(), query.GetGameStarsQuery{
		UserID: userID,
		GameID: r.PathValue("gameId"),
	})
	s.respond(w, r, data, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// respond writes a query result or its error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data)
}

// writeError maps domain errors onto HTTP statuses and envelope codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeJSONError(w, r, http.StatusConflict, CodeInsufficientFunds, "insufficient funds", "")
	case shared.IsUnauthorized(err):
		writeJSONError(w, r, http.StatusUnauthorized, CodeNotAuthorized, "not authorized", "")
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, CodeValidation, errorMessage(err), err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, CodeNotFound, errorMessage(err), "")
	default:
		code := CodeInternal
		if shared.IsPersistence(err) {
			code = CodePersistence
		}
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, code, "the request could not be completed", "")
	}
}

// errorMessage prefers the DomainError message over the full chain.
func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
