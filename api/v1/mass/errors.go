package mass

import (
	"errors"

	"wecom_ops/internal/httpx"
	"wecom_ops/internal/mass"

	"github.com/gin-gonic/gin"
)

// toAppError maps domain error kinds onto the HTTP envelope; anything unclassified is a 500
func toAppError(err error, fallback string) *httpx.AppError {
	var appErr *httpx.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var e *mass.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case mass.KindValidation:
			return httpx.ErrValidation(e.Message)
		case mass.KindNotFound:
			return httpx.ErrNotFound(e.Message)
		case mass.KindForbidden:
			return httpx.ErrForbidden(e.Message)
		case mass.KindConflict:
			return httpx.ErrConflict(e.Message)
		}
	}
	return httpx.ErrInternalError(fallback, err)
}

func fail(c *gin.Context, err error, fallback string) {
	httpx.FailErr(c, toAppError(err, fallback))
}
