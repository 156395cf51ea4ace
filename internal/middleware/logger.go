package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/matthew-heyner/family-finance/internal/log"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, puts a request-scoped logger
// in its context and writes one line when it completes.
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	logger = logger.WithComponent(log.ComponentHTTP)
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		reqLogger := logger.With(log.FieldRequestID, id)
		c.Request = c.Request.WithContext(log.NewContext(c.Request.Context(), reqLogger))

		c.Next()

		status := c.Writer.Status()
		fields := log.NewFields().
			WithHTTPRequest(c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery, c.ClientIP()).
			WithHTTPResponse(status, time.Since(start).Milliseconds())
		if u, err := CurrentUser(c); err == nil {
			fields.WithUser(u.ID)
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		reqLogger.Log(c.Request.Context(), level, "request completed", fields.ToSlice()...)
	}
}
