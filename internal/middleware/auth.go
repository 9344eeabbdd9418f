package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"dispatch/internal/domain"
)

const callerContextKey = "caller"

// Claims are the JWT claims issued by the authentication service. The
// subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates "Authorization: Bearer <token>" signed with HS256 and
// stores the caller in the gin context.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims := &Claims{}
		_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			if len(key) == 0 {
				return nil, errors.New("jwt secret not configured")
			}
			return key, nil
		})
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		role := domain.Role(claims.Role)
		if claims.Subject == "" || !role.Valid() {
			abortUnauthorized(c, "invalid token claims")
			return
		}

		c.Set(callerContextKey, domain.Caller{ID: claims.Subject, Role: role})
		c.Next()
	}
}

// CallerFromContext returns the authenticated caller.
func CallerFromContext(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(callerContextKey)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}

// NewToken signs a token for caller valid for ttl.
func NewToken(secret string, caller domain.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(caller.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
