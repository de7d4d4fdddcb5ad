// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	xerrors "edu-ledger-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}

// StatusFor maps a ledger error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case xerrors.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrNotFound), errors.Is(err, xerrors.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrAlreadyRedeemed), errors.Is(err, xerrors.ErrExhausted),
		errors.Is(err, xerrors.ErrDuplicateEntry), errors.Is(err, xerrors.ErrPersistenceConflict):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, xerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, xerrors.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError sends err with the status StatusFor picks. Internal failures are
// not echoed to the client.
func FromError(c *gin.Context, message string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Error(c, status, message, errors.New("internal server error"))
		return
	}
	Error(c, status, message, err)
}
