package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

const (
	ErrorCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorCodePredictionFailed ErrorCode = "PREDICTION_FAILED"
)

// APIError is the body of every error response.
type APIError struct {
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func sendError(c *gin.Context, status int, code ErrorCode, message string) {
	c.AbortWithStatusJSON(status, &APIError{
		Error:     "Request failed",
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func sendInvalidJSON(c *gin.Context, err error) {
	sendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid JSON in request body: "+err.Error())
}

func sendValidationError(c *gin.Context, message string) {
	sendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

func sendPredictionError(c *gin.Context, err error) {
	sendError(c, http.StatusInternalServerError, ErrorCodePredictionFailed, "Prediction failed: "+err.Error())
}
