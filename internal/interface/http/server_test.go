package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeclineZ/brain-train-sub002/internal/application/command"
	"github.com/DeclineZ/brain-train-sub002/internal/application/query"
	"github.com/DeclineZ/brain-train-sub002/internal/application/saga"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
	"github.com/DeclineZ/brain-train-sub002/internal/interface/http/handlers"
	"github.com/DeclineZ/brain-train-sub002/pkg/metrics"
)

const testUser = "6f1c2a9e-8d43-4b8e-9a51-0c7d2e4f9b10"

// handlerFunc adapts a function to Handler.
type handlerFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

func (f handlerFunc[In, Out]) Handle(ctx context.Context, in In) (Out, error) { return f(ctx, in) }

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func newTestServer(t *testing.T, cfg Config, deps Dependencies) http.Handler {
	t.Helper()
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
	}
	return NewServer(cfg, deps).Handler()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return cfg
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func authHeaders() map[string]string {
	return map[string]string{handlers.UserIDHeader: testUser}
}

func TestServer_RequiresUserHeader(t *testing.T) {
	h := newTestServer(t, testConfig(), Dependencies{})

	for _, header := range []map[string]string{nil, {handlers.UserIDHeader: "not-a-uuid"}} {
		rec := do(h, http.MethodGet, "/api/v1/wallet", "", header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		env := decode(t, rec)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeNotAuthorized, env.Error.Code)
	}
}

func TestServer_SubmitSession(t *testing.T) {
	var got command.SubmitSessionCommand
	deps := Dependencies{
		SubmitSession: handlerFunc[command.SubmitSessionCommand, *saga.SubmissionResult](
			func(_ context.Context, cmd command.SubmitSessionCommand) (*saga.SubmissionResult, error) {
				got = cmd
				return &saga.SubmissionResult{SessionID: "s-1", Level: 2, EarnedCoins: 30}, nil
			}),
	}
	h := newTestServer(t, testConfig(), deps)

	headers := authHeaders()
	headers[IdempotencyKeyHeader] = "retry-1"
	rec := do(h, http.MethodPost, "/api/v1/games/game-01-cardmatch/sessions", `{"level":2}`, headers)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, testUser, got.UserID)
	assert.Equal(t, "game-01-cardmatch", got.GameID)
	assert.Equal(t, "retry-1", got.IdempotencyKey)
	assert.JSONEq(t, `{"level":2}`, string(got.RawData))

	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)

	var result saga.SubmissionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "s-1", result.SessionID)
	assert.EqualValues(t, 30, result.EarnedCoins)
}

func TestServer_SubmitSessionDuplicateIsOK(t *testing.T) {
	deps := Dependencies{
		SubmitSession: handlerFunc[command.SubmitSessionCommand, *saga.SubmissionResult](
			func(context.Context, command.SubmitSessionCommand) (*saga.SubmissionResult, error) {
				return &saga.SubmissionResult{SessionID: "s-1", AlreadyProcessed: true}, nil
			}),
	}
	h := newTestServer(t, testConfig(), deps)

	rec := do(h, http.MethodPost, "/api/v1/games/game-01-cardmatch/sessions", `{}`, authHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", shared.ValidationError("session", "Submit", "raw data is required"), http.StatusBadRequest, CodeValidation},
		{"invalid game", shared.NewDomainError("game", "Get", shared.ErrInvalidID, "unknown game"), http.StatusBadRequest, CodeValidation},
		{"unauthorized", shared.NewDomainError("session", "Submit", shared.ErrUnauthorized, "bad user"), http.StatusUnauthorized, CodeNotAuthorized},
		{"insufficient funds", shared.WrapError("wallet", "ApplyDelta", shared.ErrValidation, "insufficient funds", wallet.ErrInsufficientFunds), http.StatusConflict, CodeInsufficientFunds},
		{"persistence", &saga.SubmissionError{Step: saga.StepRecord, Cause: shared.PersistenceError("session", "RecordAttempt", errors.New("db down"))}, http.StatusInternalServerError, CodePersistence},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Dependencies{
				SubmitSession: handlerFunc[command.SubmitSessionCommand, *saga.SubmissionResult](
					func(context.Context, command.SubmitSessionCommand) (*saga.SubmissionResult, error) {
						return nil, tt.err
					}),
			}
			h := newTestServer(t, testConfig(), deps)

			rec := do(h, http.MethodPost, "/api/v1/games/game-01-cardmatch/sessions", `{}`, authHeaders())
			assert.Equal(t, tt.status, rec.Code)

			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotContains(t, env.Error.Message, "db down")
		})
	}
}

func TestServer_PerformCheckin(t *testing.T) {
	deps := Dependencies{
		PerformCheckin: handlerFunc[command.PerformCheckinCommand, *streak.CheckinResult](
			func(_ context.Context, cmd command.PerformCheckinCommand) (*streak.CheckinResult, error) {
				assert.Equal(t, testUser, cmd.UserID)
				return &streak.CheckinResult{Success: true, StreakCount: 3, CoinsEarned: 11, NewCheckin: true}, nil
			}),
	}
	h := newTestServer(t, testConfig(), deps)

	rec := do(h, http.MethodPost, "/api/v1/checkin", "", authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var result streak.CheckinResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, 3, result.StreakCount)
	assert.EqualValues(t, 11, result.CoinsEarned)
}

func TestServer_CheckinCalendarParams(t *testing.T) {
	var got query.GetCheckinCalendarQuery
	deps := Dependencies{
		CheckinCalendar: handlerFunc[query.GetCheckinCalendarQuery, *query.CheckinCalendarDTO](
			func(_ context.Context, q query.GetCheckinCalendarQuery) (*query.CheckinCalendarDTO, error) {
				got = q
				return &query.CheckinCalendarDTO{Year: q.Year, Month: q.Month}, nil
			}),
	}
	h := newTestServer(t, testConfig(), deps)

	rec := do(h, http.MethodGet, "/api/v1/checkin/calendar?year=2026&month=5", "", authHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2026, got.Year)
	assert.Equal(t, 5, got.Month)

	rec = do(h, http.MethodGet, "/api/v1/checkin/calendar?month=may", "", authHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, decode(t, rec).Error.Code)
}

func TestServer_GameStarsUsesPathGame(t *testing.T) {
	deps := Dependencies{
		GameStars: handlerFunc[query.GetGameStarsQuery, *query.GameStarsDTO](
			func(_ context.Context, q query.GetGameStarsQuery) (*query.GameStarsDTO, error) {
				return &query.GameStarsDTO{GameID: q.GameID, TotalStars: 5}, nil
			}),
	}
	h := newTestServer(t, testConfig(), deps)

	rec := do(h, http.MethodGet, "/api/v1/games/game-02-sensorlock/stars", "", authHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var dto query.GameStarsDTO
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &dto))
	assert.Equal(t, "game-02-sensorlock", dto.GameID)
}

func TestServer_WrongMethod(t *testing.T) {
	h := newTestServer(t, testConfig(), Dependencies{})

	rec := do(h, http.MethodGet, "/api/v1/checkin", "", authHeaders())
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_HealthAndReady(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	h := newTestServer(t, testConfig(), Dependencies{HealthChecker: checker})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/ready", "", nil).Code)

	checker.AddCheck("database", func(context.Context) error { return errors.New("unreachable") })
	rec := do(h, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// liveness ignores dependencies
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", nil).Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h := newTestServer(t, testConfig(), Dependencies{})

	do(h, http.MethodGet, "/health", "", nil)
	rec := do(h, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	h := newTestServer(t, cfg, Dependencies{})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", authHeaders()).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", authHeaders()).Code)

	rec := do(h, http.MethodGet, "/health", "", authHeaders())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, decode(t, rec).Error.Code)

	// other users have their own window
	other := map[string]string{handlers.UserIDHeader: "0b9e4d7c-1a2b-4c3d-8e9f-a0b1c2d3e4f5"}
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", other).Code)
}

func TestServer_RequestIDAndCORS(t *testing.T) {
	h := newTestServer(t, testConfig(), Dependencies{})

	rec := do(h, http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", decode(t, rec).RequestID)

	rec = do(h, http.MethodOptions, "/api/v1/checkin", "", map[string]string{"Origin": "https://app.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RecoversFromPanics(t *testing.T) {
	deps := Dependencies{
		Badges: handlerFunc[query.GetBadgesQuery, *query.BadgesDTO](
			func(context.Context, query.GetBadgesQuery) (*query.BadgesDTO, error) {
				panic("boom")
			}),
	}
	h := newTestServer(t, testConfig(), deps)

	rec := do(h, http.MethodGet, "/api/v1/badges", "", authHeaders())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeInternal, decode(t, rec).Error.Code)
}

func TestRateLimiter_Window(t *testing.T) {
	l := handlers.NewRateLimiter(1, 50*time.Millisecond)

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	time.Sleep(80 * time.Millisecond)
	assert.True(t, l.Allow("k"))
}
