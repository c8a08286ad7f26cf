package mass

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"wecom_ops/internal/httpx"
	"wecom_ops/internal/mass"

	"github.com/stretchr/testify/assert"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{mass.ValidationError("bad"), http.StatusBadRequest, httpx.CodeValidation},
		{mass.NotFoundError("gone"), http.StatusNotFound, httpx.CodeNotFound},
		{mass.ForbiddenError("no"), http.StatusForbidden, httpx.CodeForbidden},
		{mass.ConflictError("dup"), http.StatusConflict, httpx.CodeConflict},
		{fmt.Errorf("wrapped: %w", mass.ForbiddenError("no")), http.StatusForbidden, httpx.CodeForbidden},
		{errors.New("db down"), http.StatusInternalServerError, httpx.CodeInternalError},
		{httpx.ErrUnauthorized("who"), http.StatusUnauthorized, httpx.CodeUnauthorized},
	}

	for _, tt := range tests {
		got := toAppError(tt.err, "fallback")
		assert.Equal(t, tt.status, got.HTTPStatus, tt.err.Error())
		assert.Equal(t, tt.code, got.Code, tt.err.Error())
	}

	internal := toAppError(errors.New("db down"), "failed to plan task")
	assert.Equal(t, "failed to plan task", internal.Message)
}
