package middleware

import (
	"errors"
	"strings"

	"wecom_ops/internal/auth"
	"wecom_ops/internal/httpx"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by AuthRequired
const (
	UIDKey      = "uid"
	UsernameKey = "username"
	RoleKey     = "role"
)

// OperatorHeader names the caller when operator auth is disabled
const OperatorHeader = "X-Operator"

// AuthRequired validates the bearer token. A nil issuer disables the check
// and takes the operator name from X-Operator instead.
func AuthRequired(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			if name := strings.TrimSpace(c.GetHeader(OperatorHeader)); name != "" {
				c.Set(UsernameKey, name)
			}
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httpx.FailErr(c, httpx.ErrUnauthorized("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httpx.FailErr(c, httpx.ErrUnauthorized("invalid authorization header format"))
			c.Abort()
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				httpx.FailErr(c, httpx.ErrTokenExpired("token expired"))
			} else {
				httpx.FailErr(c, httpx.ErrInvalidToken("invalid token"))
			}
			c.Abort()
			return
		}

		c.Set(UIDKey, claims.UID)
		c.Set(UsernameKey, claims.Username)
		c.Set(RoleKey, claims.Role)

		c.Next()
	}
}

// Operator returns the authenticated operator name, empty when unknown
func Operator(c *gin.Context) string {
	return c.GetString(UsernameKey)
}
