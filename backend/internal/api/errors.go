package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "persinteret/backend/pkg/errors"
)

// statusFor maps an error kind to the HTTP status reported for it
func statusFor(err error) int {
	if errors.Is(err, apperrors.ErrNoData) {
		return http.StatusNotFound
	}

	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeInvalidRecord, apperrors.ErrorTypeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeDuplicateName:
		return http.StatusConflict
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrorTypeStoreUnavailable, apperrors.ErrorTypePartialSync:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope
func errorBody(err error) gin.H {
	body := gin.H{
		"error":     err.Error(),
		"retryable": apperrors.IsRetryable(err),
	}
	if kind := apperrors.TypeOf(err); kind != "" {
		body["kind"] = kind
	}
	if step := apperrors.StepOf(err); step != "" {
		body["step"] = step
	}

	var invalid *apperrors.ErrInvalidRecord
	if errors.As(err, &invalid) {
		body["missing"] = invalid.Missing
	}
	return body
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), errorBody(err))
}
