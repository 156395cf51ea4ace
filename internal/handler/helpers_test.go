package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/config"
	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/router"
	"github.com/matthew-heyner/family-finance/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// env is a full API over an in-memory database.
type env struct {
	t      *testing.T
	db     *gorm.DB
	cfg    *config.Config
	svc    *auth.Service
	pub    *events.MemoryPublisher
	engine *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := testutil.Config(t)
	pub := &events.MemoryPublisher{}
	svc := auth.NewService(db, auth.OptionsFromConfig(cfg), pub, log.Discard())
	limiter := middleware.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	t.Cleanup(limiter.Stop)
	engine := router.SetupRouter(router.Deps{
		Config:  cfg,
		DB:      db,
		Auth:    svc,
		Events:  pub,
		Logger:  log.Discard(),
		Limiter: limiter,
	})
	return &env{t: t, db: db, cfg: cfg, svc: svc, pub: pub, engine: engine}
}

func (e *env) token(u *models.User) string {
	e.t.Helper()
	tok, err := e.svc.IssueToken(u)
	require.NoError(e.t, err)
	return tok
}

// do sends body (marshalled to JSON unless already an io.Reader) as u.
// A nil user sends no credentials.
func (e *env) do(u *models.User, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		r = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		if _, ok := body.(io.Reader); !ok {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(u))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success    bool            `json:"success"`
	Count      int             `json:"count"`
	Total      int64           `json:"total"`
	Token      string          `json:"token"`
	Data       json.RawMessage `json:"data"`
	Pagination struct {
		Next *struct{ Page, Limit int } `json:"next"`
		Prev *struct{ Page, Limit int } `json:"prev"`
	} `json:"pagination"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// data decodes the data member of a success envelope into dest.
func data(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	env := decode(t, w)
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := decode(t, w)
	require.False(t, env.Success)
	if message != "" {
		require.Equal(t, message, env.Error.Message)
	}
}
