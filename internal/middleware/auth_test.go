package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

const secret = "test-secret"

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(secret), func(c *gin.Context) {
		caller, ok := CallerFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": caller.ID, "role": caller.Role})
	})
	return r
}

func call(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_ValidToken(t *testing.T) {
	tok, err := NewToken(secret, domain.Caller{ID: "driver-1", Role: domain.RoleDriver}, time.Hour)
	require.NoError(t, err)

	w := call(authRouter(), "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"driver-1","role":"driver"}`, w.Body.String())
}

func TestAuth_Rejections(t *testing.T) {
	expired, err := NewToken(secret, domain.Caller{ID: "driver-1", Role: domain.RoleDriver}, -time.Minute)
	require.NoError(t, err)

	forged, err := NewToken("other", domain.Caller{ID: "driver-1", Role: domain.RoleDriver}, time.Hour)
	require.NoError(t, err)

	unknownRole, err := NewToken(secret, domain.Caller{ID: "driver-1", Role: "pilot"}, time.Hour)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Role:             "driver",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "driver-1"},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "missing bearer token"},
		{"wrong scheme", "Basic abc", "missing bearer token"},
		{"expired", "Bearer " + expired, "invalid token"},
		{"bad signature", "Bearer " + forged, "invalid token"},
		{"unexpected algorithm", "Bearer " + hs512, "invalid token"},
		{"unknown role", "Bearer " + unknownRole, "invalid token claims"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(authRouter(), tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, w.Body.String())
		})
	}
}
