package api

import (
	"errors"
	"net/http"

	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// abortWithError writes a JSON error body and aborts the chain.
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": http.StatusText(code), "message": message})
}

// statusFor maps a service error category to an HTTP status. conflictStatus
// lets the progress and schedule routes answer conflicts with 400.
func statusFor(err error, conflictStatus int) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrConflict):
		return conflictStatus
	case errors.Is(err, service.ErrMalformedInput),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrPaymentFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	respondErrorWithConflict(c, err, http.StatusConflict)
}

func respondErrorWithConflict(c *gin.Context, err error, conflictStatus int) {
	status := statusFor(err, conflictStatus)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		abortWithError(c, status, "Internal server error")
		return
	}
	abortWithError(c, status, err.Error())
}

// bindError reports a request body or parameter that failed validation.
func bindError(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
}

// pathID parses an ObjectID path parameter, answering 400 on failure.
func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := service.ParseID(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}
