package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"vibelink/response"
)

// AppError is an error that already knows how it should be rendered.
type AppError struct {
	StatusCode int
	Message    string
	Details    []response.FieldError
	RetryAfter int
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewAppError(status int, message string, cause error) *AppError {
	return &AppError{StatusCode: status, Message: message, Cause: cause}
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, nil)
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "Unauthorized"
	}
	return NewAppError(http.StatusUnauthorized, message, nil)
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "Forbidden"
	}
	return NewAppError(http.StatusForbidden, message, nil)
}

func NotFound(message string) *AppError {
	if message == "" {
		message = "Resource not found"
	}
	return NewAppError(http.StatusNotFound, message, nil)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, message, nil)
}

// ValidationError is a 400 carrying one entry per failed rule.
func ValidationError(details []response.FieldError) *AppError {
	return &AppError{
		StatusCode: http.StatusBadRequest,
		Message:    "Validation failed",
		Details:    details,
	}
}

func TooManyRequests(retryAfter int) *AppError {
	return &AppError{
		StatusCode: http.StatusTooManyRequests,
		Message:    "Too many requests, please try again later",
		RetryAfter: retryAfter,
	}
}

// Internal wraps an unexpected error. Its cause is logged, never rendered.
func Internal(cause error) *AppError {
	return NewAppError(http.StatusInternalServerError, response.MessageInternalServerError, cause)
}

// Abort records err on the context and stops the handler chain.
// ErrorHandler renders it.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler renders the last error attached to the context as the
// failure envelope.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, body := normalizeError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", RequestIDFrom(c),
				"error", err,
			)
		}
		response.Fail(c, status, body)
	}
}

func normalizeError(err error) (int, response.ErrorBody) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode > 0 && appErr.StatusCode < http.StatusInternalServerError {
		msg := appErr.Message
		if msg == "" {
			msg = http.StatusText(appErr.StatusCode)
		}
		return appErr.StatusCode, response.ErrorBody{
			Message:    msg,
			Errors:     appErr.Details,
			RetryAfter: appErr.RetryAfter,
		}
	}
	return http.StatusInternalServerError, response.ErrorBody{Message: response.MessageInternalServerError}
}

// Recovery turns a panic into the 500 envelope.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"panic", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				if !c.Writer.Written() {
					response.Fail(c, http.StatusInternalServerError, response.ErrorBody{Message: response.MessageInternalServerError})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
