package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// ContextUserKey holds the authenticated *models.User.
const ContextUserKey = "currentUser"

// bearerToken reads the token from the Authorization header, then from the
// session cookie.
func bearerToken(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if cookieName != "" {
		if tok, err := c.Cookie(cookieName); err == nil {
			return tok
		}
	}
	return ""
}

// Authenticate resolves the session token to a user and stores it under
// ContextUserKey.
func Authenticate(svc *auth.Service, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Authenticate(c.Request.Context(), bearerToken(c, cookieName))
		if err != nil {
			util.Error(c, err)
			return
		}
		c.Set(ContextUserKey, user)

		ctx := c.Request.Context()
		logger := log.FromContext(ctx).With(log.FieldUserID, user.ID)
		c.Request = c.Request.WithContext(log.NewContext(ctx, logger))
		c.Next()
	}
}

// CurrentUser returns the principal set by Authenticate.
func CurrentUser(c *gin.Context) (*models.User, error) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, util.AuthError("Not authorized to access this route")
	}
	user, ok := v.(*models.User)
	if !ok || user == nil {
		return nil, util.AuthError("Not authorized to access this route")
	}
	return user, nil
}

// RequireRole lets through only principals holding one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err == nil {
			err = auth.AuthorizeRole(user, roles...)
		}
		if err != nil {
			util.Error(c, err)
			return
		}
		c.Next()
	}
}

// RequireFamily rejects principals that have not joined a family.
func RequireFamily() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err == nil {
			_, err = auth.RequireFamily(user)
		}
		if err != nil {
			util.Error(c, err)
			return
		}
		c.Next()
	}
}
