package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/pkg/logger"
)

// Response is the error envelope. Successful calls write their payload as-is.
type Response struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// AppError represents a structured application error with HTTP status and error code.
type AppError struct {
	HTTPStatus int               // HTTP status code (e.g. 400, 404, 500)
	Code       int               // Application-level error code
	Message    string            // Human-readable error message
	Fields     map[string]string // Offending input fields, keyed by JSON name
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches on HTTP status, so callers can test errors.Is(err, response.ErrForbidden).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.HTTPStatus == e.HTTPStatus
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation   = &AppError{HTTPStatus: http.StatusBadRequest}
	ErrUnauthorized = &AppError{HTTPStatus: http.StatusUnauthorized}
	ErrForbidden    = &AppError{HTTPStatus: http.StatusForbidden}
	ErrNotFound     = &AppError{HTTPStatus: http.StatusNotFound}
)

func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Code: 400, Message: msg}
}

// NewValidation reports a single invalid field.
func NewValidation(field, msg string) *AppError {
	return &AppError{
		HTTPStatus: http.StatusBadRequest,
		Code:       400,
		Message:    field + ": " + msg,
		Fields:     map[string]string{field: msg},
	}
}

// NewValidationFields reports several invalid fields at once.
func NewValidationFields(fields map[string]string) *AppError {
	return &AppError{
		HTTPStatus: http.StatusBadRequest,
		Code:       400,
		Message:    "validation failed",
		Fields:     fields,
	}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Code: 401, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Code: 403, Message: msg}
}

// NewNotFound takes the resource name, e.g. NewNotFound("board").
func NewNotFound(resource string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Code: 404, Message: resource + " not found"}
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends an empty 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response. If err is an *AppError, its code and status
// are used; otherwise the error is logged and a generic 500 is returned.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Response{
			Code:    appErr.Code,
			Message: appErr.Message,
			Errors:  appErr.Fields,
		})
		return
	}

	_ = c.Error(err)
	logger.Error().Err(err).
		Str("request_id", logger.RequestID(c)).
		Str("path", c.Request.URL.Path).
		Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, Response{
		Code:    500,
		Message: "internal server error",
	})
}

// Convenience error response functions

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: 401, Message: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{Code: 403, Message: msg})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: 429, Message: msg})
}
