package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/testutil"
)

func newEngine(t *testing.T, limiter *middleware.Limiter) *gin.Engine {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := testutil.Config(t)
	if limiter == nil {
		limiter = middleware.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	t.Cleanup(limiter.Stop)
	return SetupRouter(Deps{
		Config:  cfg,
		DB:      db,
		Auth:    auth.NewService(db, auth.OptionsFromConfig(cfg), nil, log.Discard()),
		Logger:  log.Discard(),
		Limiter: limiter,
	})
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	assert.False(t, body.Success)
	return body.Error.Message
}

func TestHealthz(t *testing.T) {
	r := newEngine(t, nil)
	w := get(r, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"status":"ok"}}`, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestUnknownRoute(t *testing.T) {
	r := newEngine(t, nil)
	w := get(r, "/api/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found - /api/nope", message(t, w))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := newEngine(t, nil)
	for _, path := range []string{
		"/api/auth/me",
		"/api/users",
		"/api/families/me",
		"/api/categories",
		"/api/transactions",
		"/api/budgets",
		"/api/receipts",
		"/api/recurring",
		"/api/reports/summary",
		"/api/audit-logs",
	} {
		w := get(r, path)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "Not authorized to access this route", message(t, w), path)
	}
}

func TestRateLimit(t *testing.T) {
	r := newEngine(t, middleware.NewLimiter(2, time.Minute))
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)

	w := get(r, "/healthz")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests, please try again later", message(t, w))
}
