package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// HeadersConfig lists the security headers set on every response.
type HeadersConfig struct {
	CSP                   string
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	PermissionsPolicy     string
	CrossOriginResource   string
}

// DefaultHeadersConfig suits a JSON API that serves no HTML.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginResource:   "same-origin",
	}
}

func SecurityHeaders(cfg HeadersConfig) gin.HandlerFunc {
	hsts := ""
	if cfg.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", cfg.XContentTypeOptions)
		h.Set("X-Frame-Options", cfg.XFrameOptions)
		h.Set("Referrer-Policy", cfg.ReferrerPolicy)
		h.Set("Permissions-Policy", cfg.PermissionsPolicy)
		h.Set("Cross-Origin-Resource-Policy", cfg.CrossOriginResource)
		if cfg.CSP != "" {
			h.Set("Content-Security-Policy", cfg.CSP)
		}
		// HSTS only means something over TLS
		if hsts != "" && (c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https") {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}
