package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namereg/internal/oracle"
	"namereg/internal/platform/middleware"
	"namereg/internal/registry/events"
	"namereg/internal/registry/models"
	"namereg/internal/registry/service"
	"namereg/internal/registry/store"
	"namereg/pkg/domain"
)

// stubValidator treats the bearer token as the caller identity. Good enough
// to exercise the auth boundary without minting real JWTs.
type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.Claims, error) {
	if token == "invalid" {
		return nil, errors.New("bad token")
	}
	return &middleware.Claims{Subject: token}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	st := store.NewMemory(&models.Params{
		TokenAddress: "0xtoken",
		MinBalance:   200,
		Duration:     time.Hour,
		Label:        "reg",
		Admin:        "admin",
	})
	balances := oracle.NewStatic(map[domain.Identity]uint64{
		"alice": 250,
		"bob":   300,
		"carol": 10,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(st, st, store.NewMemoryTx(), balances,
		service.WithLogger(logger),
		service.WithPublisher(events.NewMemoryPublisher()),
	)

	r := chi.NewRouter()
	New(svc, logger, nil, stubValidator{}).Register(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+caller)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetName_Unregistered(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/names/ghost", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["available"])
	assert.Empty(t, body["owner"])
	assert.Nil(t, body["expires_at"])
}

func TestRegister(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		router := newTestRouter(t)
		rec := do(t, router, http.MethodPost, "/names/alpha/register", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		router := newTestRouter(t)
		rec := do(t, router, http.MethodPost, "/names/alpha/register", "invalid", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("registers and reflects ownership", func(t *testing.T) {
		router := newTestRouter(t)

		rec := do(t, router, http.MethodPost, "/names/alpha/register", "alice", "")
		require.Equal(t, http.StatusCreated, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "alpha", body["name"])
		assert.Equal(t, "alice", body["owner"])
		assert.NotEmpty(t, body["expires_at"])

		view := decode(t, do(t, router, http.MethodGet, "/names/alpha", "", ""))
		assert.Equal(t, false, view["available"])
		assert.Equal(t, "alice", view["owner"])
	})

	t.Run("conflicts on a live name", func(t *testing.T) {
		router := newTestRouter(t)

		require.Equal(t, http.StatusCreated,
			do(t, router, http.MethodPost, "/names/alpha/register", "alice", "").Code)

		rec := do(t, router, http.MethodPost, "/names/alpha/register", "bob", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "NAME_UNAVAILABLE", decode(t, rec)["error"])
	})

	t.Run("rejects a caller below the threshold", func(t *testing.T) {
		router := newTestRouter(t)

		rec := do(t, router, http.MethodPost, "/names/alpha/register", "carol", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "INSUFFICIENT_BALANCE", decode(t, rec)["error"])
	})

	t.Run("lowercases names at the boundary", func(t *testing.T) {
		router := newTestRouter(t)

		require.Equal(t, http.StatusCreated,
			do(t, router, http.MethodPost, "/names/Alpha/register", "alice", "").Code)

		view := decode(t, do(t, router, http.MethodGet, "/names/ALPHA", "", ""))
		assert.Equal(t, "alpha", view["name"])
		assert.Equal(t, "alice", view["owner"])
	})
}

func TestRecordRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	require.Equal(t, http.StatusCreated,
		do(t, router, http.MethodPost, "/names/alpha/register", "alice", "").Code)

	rec := do(t, router, http.MethodPut, "/names/alpha/record", "alice", `{"record":"hello"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	view := decode(t, do(t, router, http.MethodGet, "/names/alpha", "", ""))
	assert.Equal(t, "hello", view["record"])

	t.Run("non-owner is rejected", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/names/alpha/record", "bob", `{"record":"hijack"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "NOT_AUTHORIZED", decode(t, rec)["error"])
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/names/alpha/record", "alice", `{broken`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTransfer(t *testing.T) {
	router := newTestRouter(t)

	require.Equal(t, http.StatusCreated,
		do(t, router, http.MethodPost, "/names/alpha/register", "alice", "").Code)

	t.Run("rejects an empty target", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/names/alpha/transfer", "alice", `{"to":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ZERO_TARGET", decode(t, rec)["error"])
	})

	t.Run("moves ownership and the counter", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/names/alpha/transfer", "alice", `{"to":"bob"}`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		view := decode(t, do(t, router, http.MethodGet, "/names/alpha", "", ""))
		assert.Equal(t, "bob", view["owner"])

		count := decode(t, do(t, router, http.MethodGet, "/owners/bob/names/count", "", ""))
		assert.Equal(t, float64(1), count["count"])
	})
}

func TestParams(t *testing.T) {
	router := newTestRouter(t)

	t.Run("read is public", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/registry/params", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, "0xtoken", body["token_address"])
		assert.Equal(t, float64(200), body["min_balance"])
		assert.Equal(t, float64(3600), body["duration_seconds"])
	})

	t.Run("update is admin only", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/registry/params", "alice", `{"min_balance":500,"duration_seconds":7200}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(t, router, http.MethodPut, "/registry/params", "admin", `{"min_balance":500,"duration_seconds":7200}`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		body := decode(t, do(t, router, http.MethodGet, "/registry/params", "", ""))
		assert.Equal(t, float64(500), body["min_balance"])
		assert.Equal(t, float64(7200), body["duration_seconds"])
	})

	t.Run("zero duration is rejected", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/registry/params", "admin", `{"min_balance":500,"duration_seconds":0}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_DURATION", decode(t, rec)["error"])
	})

	t.Run("admin handover", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/registry/admin/transfer", "admin", `{"to":"bob"}`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, router, http.MethodPut, "/registry/params", "admin", `{"min_balance":1,"duration_seconds":60}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(t, router, http.MethodPut, "/registry/params", "bob", `{"min_balance":1,"duration_seconds":60}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
