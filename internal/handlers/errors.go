package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/gemini-chat/internal/errordata"
	"github.com/slotter-org/gemini-chat/internal/errs"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrEmptyPrompt), errors.Is(err, errs.ErrUnknownModel):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrExportUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...} plus any extra fields and records the
// error for the request logger.
func respondError(c *gin.Context, err error, extra gin.H) {
	status := statusFor(err)
	if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
		ed.SetMessage(status, err.Error())
	}
	body := gin.H{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
		ed.SetMessage(http.StatusBadRequest, msg)
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
