package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentAuth, Output: &buf})

	logger.Info("user registered", FieldUserID, 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "user registered", rec["msg"])
	assert.Equal(t, ComponentAuth, rec[FieldComponent])
	assert.EqualValues(t, 7, rec[FieldUserID])
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	logger := Discard().WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestFields(t *testing.T) {
	f := NewFields().
		WithRequestID("abc").
		WithError(errors.New("boom")).
		WithUser(0).
		WithHTTPResponse(500, 12)

	assert.Equal(t, "abc", f[FieldRequestID])
	assert.Equal(t, "boom", f[FieldError])
	assert.NotContains(t, f, FieldUserID)
	assert.Len(t, f.ToSlice(), len(f)*2)
}
