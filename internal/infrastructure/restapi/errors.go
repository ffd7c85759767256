package restapi

import (
	"errors"
	"net/http"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes and client-facing messages.
func statusFor(err error) (int, string) {
	var (
		unsupported *entity.UnsupportedChainError
		validation  *entity.ValidationError
	)
	switch {
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, "Unsupported chain"
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, entity.ErrDuplicateKey):
		return http.StatusConflict, "Already exists."
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}
