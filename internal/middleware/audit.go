package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

const maxAuditBody = 2000

// redactedKeys never reach the audit trail, even encrypted.
var redactedKeys = []string{"password", "currentPassword", "newPassword", "token"}

func redactBody(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		// not JSON (e.g. multipart upload): keep only the size
		return ""
	}
	for _, k := range redactedKeys {
		if _, ok := m[k]; ok {
			m[k] = "[redacted]"
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(out)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Audit records every mutating request made by an authenticated user. Path
// and body are stored AES-GCM encrypted under key. Failures to write the
// trail are logged and never affect the response.
func Audit(db *gorm.DB, key []byte, logger *log.Logger) gin.HandlerFunc {
	logger = logger.WithComponent(log.ComponentAudit)
	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil && c.ContentType() == gin.MIMEJSON {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody+1))
			rest := c.Request.Body
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), rest))
		}

		c.Next()

		user, err := CurrentUser(c)
		if err != nil {
			return
		}

		path := c.Request.URL.Path
		action := c.Request.Method + " " + path
		if len(body) > 0 && len(body) <= maxAuditBody {
			if red := redactBody(body); red != "" {
				action += " " + red
			}
		}

		encPath, err := util.EncryptString(key, path)
		if err != nil {
			logger.ErrorContext(c.Request.Context(), "encrypt audit path", log.FieldError, err)
			return
		}
		encAction, err := util.EncryptString(key, action)
		if err != nil {
			logger.ErrorContext(c.Request.Context(), "encrypt audit action", log.FieldError, err)
			return
		}

		entry := models.AuditLog{
			UserID:    user.ID,
			FamilyID:  user.FamilyID,
			Method:    c.Request.Method,
			Status:    c.Writer.Status(),
			PathEnc:   encPath,
			ActionEnc: encAction,
			IP:        c.ClientIP(),
			UserAgent: truncate(c.Request.UserAgent(), 255),
		}
		if err := db.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
			logger.ErrorContext(c.Request.Context(), "write audit log", log.FieldError, err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
