package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"edu-ledger-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubVerifier struct {
	claims *jwt.Claims
	err    error
}

func (s stubVerifier) VerifyAccessToken(string) (*jwt.Claims, error) {
	return s.claims, s.err
}

func newEngine(verifier TokenVerifier, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()), LoggingMiddleware(zap.NewNop()))
	m := NewAuthMiddleware(verifier)
	chain := append(m.StaffOnly(), handlers...)
	r.GET("/staff", chain...)
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func serve(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStaffOnly(t *testing.T) {
	ok := func(c *gin.Context) {
		c.String(http.StatusOK, MustGetIdentityID(c))
	}

	tests := []struct {
		name     string
		verifier stubVerifier
		auth     string
		want     int
	}{
		{"missing header", stubVerifier{}, "", http.StatusUnauthorized},
		{"not bearer", stubVerifier{}, "Basic abc", http.StatusUnauthorized},
		{"bad token", stubVerifier{err: errors.New("expired")}, "Bearer x", http.StatusUnauthorized},
		{"student", stubVerifier{claims: &jwt.Claims{IdentityID: "s1", Roles: []string{jwt.RoleStudent}}}, "Bearer x", http.StatusForbidden},
		{"sub admin", stubVerifier{claims: &jwt.Claims{IdentityID: "sa", Roles: []string{jwt.RoleSubAdmin}}}, "Bearer x", http.StatusOK},
		{"admin", stubVerifier{claims: &jwt.Claims{IdentityID: "a1", Roles: []string{jwt.RoleAdmin}}}, "Bearer x", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newEngine(tt.verifier, ok), "/staff", tt.auth)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, tt.verifier.claims.IdentityID, w.Body.String())
			}
		})
	}
}

func TestIsSubAdmin(t *testing.T) {
	var got bool
	r := newEngine(stubVerifier{claims: &jwt.Claims{IdentityID: "x", Roles: []string{jwt.RoleAdmin, jwt.RoleSubAdmin}}}, func(c *gin.Context) {
		got = IsSubAdmin(c)
		c.Status(http.StatusOK)
	})
	serve(r, "/staff", "Bearer x")
	assert.False(t, got, "a full admin is never restricted")
}

func TestRecoveryMiddleware(t *testing.T) {
	w := serve(newEngine(stubVerifier{}), "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.NotContains(t, w.Body.String(), "boom")
}
