package auth

import (
	"errors"
	"time"

	"wecom_ops/internal/auth"
	"wecom_ops/internal/httpx"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response data
type LoginResponse struct {
	Token    string        `json:"token"`
	ExpireAt string        `json:"expire_at"`
	User     auth.Operator `json:"user"`
}

// LoginHandler exchanges operator credentials for a bearer token
func LoginHandler(db *gorm.DB, tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.FailErr(c, httpx.ErrValidation("invalid request body"))
			return
		}

		op, err := auth.Authenticate(c.Request.Context(), db, req.Username, req.Password)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			// 用户不存在与密码错误返回相同错误
			httpx.FailErr(c, httpx.ErrUnauthorized("invalid credentials"))
			return
		case errors.Is(err, auth.ErrOperatorInactive):
			httpx.FailErr(c, httpx.ErrForbidden("user is inactive"))
			return
		case err != nil:
			httpx.FailErr(c, httpx.ErrDatabaseError("database error", err))
			return
		}

		token, expireAt, err := tokens.Issue(op)
		if err != nil {
			httpx.FailErr(c, httpx.ErrInternalError("failed to generate token", err))
			return
		}

		httpx.OK(c, LoginResponse{
			Token:    token,
			ExpireAt: expireAt.Format(time.RFC3339),
			User:     *op,
		})
	}
}
