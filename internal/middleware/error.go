package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// ErrorHandler renders the last error recorded by a handler. Operational
// errors keep their message; anything else is logged in full and reported
// as a bare 500. Stacks are only exposed when showStack is set.
func ErrorHandler(logger *log.Logger, showStack bool) gin.HandlerFunc {
	logger = logger.WithComponent(log.ComponentHTTP)
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, message := util.StatusOf(err)

		fields := log.NewFields().
			WithHTTPRequest(c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery, c.ClientIP()).
			WithError(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), "request failed", fields.ToSlice()...)
		} else {
			logger.DebugContext(c.Request.Context(), "request rejected", fields.ToSlice()...)
		}

		stack := ""
		if showStack {
			stack = err.Error()
		}
		util.WriteError(c, status, message, stack)
	}
}

// Recovery turns a panic into the standard 500 envelope.
func Recovery(logger *log.Logger, showStack bool) gin.HandlerFunc {
	logger = logger.WithComponent(log.ComponentHTTP)
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			stack := string(debug.Stack())
			logger.ErrorContext(c.Request.Context(), "panic recovered",
				log.FieldError, fmt.Sprint(rec),
				log.FieldPath, c.Request.URL.Path,
				"stack", stack,
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			if !showStack {
				stack = ""
			}
			util.WriteError(c, http.StatusInternalServerError, "Internal Server Error", stack)
		}()
		c.Next()
	}
}

// NotFound answers unmatched routes.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		util.Error(c, util.NotFoundError("Not Found - %s", c.Request.URL.Path))
	}
}
