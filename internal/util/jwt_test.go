package util

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	tok, err := GenerateToken("secret", "famfin", 42, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken("secret", tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
		t.Error("token should carry a future expiry")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	good, _ := GenerateToken("secret", "", 1, time.Hour)
	// a non-positive ttl falls back to the default, so sign an expired one by hand
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("secret"))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1}).SignedString([]byte("secret"))

	cases := map[string]struct {
		secret, token string
	}{
		"wrong secret": {"other", good},
		"malformed":    {"secret", "abc.def"},
		"empty":        {"secret", ""},
		"expired":      {"secret", expired},
		"other alg":    {"secret", hs512},
		"no expiry":    {"secret", noExp},
	}
	for name, tc := range cases {
		if _, err := ParseToken(tc.secret, tc.token); err == nil {
			t.Errorf("%s: ParseToken error = nil, want error", name)
		}
	}
}

func TestGenerateToken_EmptySecret(t *testing.T) {
	if _, err := GenerateToken("", "", 1, time.Hour); err == nil {
		t.Error("empty secret should fail")
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{ValidationError("bad %s", "amount"), http.StatusBadRequest, "bad amount"},
		{AuthError("Invalid credentials"), http.StatusUnauthorized, "Invalid credentials"},
		{ForbiddenError("nope"), http.StatusForbidden, "nope"},
		{NotFoundError("gone"), http.StatusNotFound, "gone"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		status, msg := StatusOf(tc.err)
		if status != tc.status || msg != tc.msg {
			t.Errorf("StatusOf(%v) = %d %q, want %d %q", tc.err, status, msg, tc.status, tc.msg)
		}
	}

	wrapped := errors.Join(errors.New("ctx"), NotFoundError("Budget not found"))
	if status, _ := StatusOf(wrapped); status != http.StatusNotFound {
		t.Errorf("wrapped status = %d", status)
	}
}
