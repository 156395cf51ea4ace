package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// AuthHandler serves sign-up, sign-in and the caller's own account.
type AuthHandler struct {
	Auth         *auth.Service
	CookieName   string
	CookieSecure bool
}

func NewAuthHandler(svc *auth.Service, cookieName string, secure bool) *AuthHandler {
	if cookieName == "" {
		cookieName = "token"
	}
	return &AuthHandler{Auth: svc, CookieName: cookieName, CookieSecure: secure}
}

// sendToken sets the session cookie and writes {success, token, data}.
func (h *AuthHandler) sendToken(c *gin.Context, status int, s *auth.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.CookieName, s.Token, int(h.Auth.TTL()/time.Second), "/", "", h.CookieSecure, true)
	c.JSON(status, gin.H{
		"success": true,
		"token":   s.Token,
		"data":    s.User,
	})
}

// ---------- register / login ----------

type registerReq struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FamilyName string `json:"familyName"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	s, err := h.Auth.Register(c.Request.Context(), auth.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		FamilyName: req.FamilyName,
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	h.sendToken(c, http.StatusCreated, s)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	s, err := h.Auth.Login(c.Request.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	h.sendToken(c, http.StatusOK, s)
}

// Logout overwrites the cookie; bearer tokens simply expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.CookieName, "none", 10, "/", "", h.CookieSecure, true)
	util.Success(c, gin.H{})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, user)
}

// ---------- password reset ----------

type forgotPasswordReq struct {
	Email string `json:"email"`
}

// ForgotPassword never returns the token; it goes out as an event.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	if _, err := h.Auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, "Email sent")
}

type resetPasswordReq struct {
	Password string `json:"password"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	s, err := h.Auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		util.Error(c, err)
		return
	}
	h.sendToken(c, http.StatusOK, s)
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	user, err := h.Auth.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, user)
}

// ---------- profile ----------

type updateDetailsReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *AuthHandler) UpdateDetails(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req updateDetailsReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	updated, err := h.Auth.UpdateDetails(c.Request.Context(), user, req.Name, req.Email)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, updated)
}

type updatePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req updatePasswordReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	s, err := h.Auth.UpdatePassword(c.Request.Context(), user, req.CurrentPassword, req.NewPassword)
	if err != nil {
		util.Error(c, err)
		return
	}
	h.sendToken(c, http.StatusOK, s)
}
