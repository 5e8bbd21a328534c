package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/duomatch/duomatch/internal/apperrors"
)

// formatValidationErrors flattens validator errors into one readable line.
func formatValidationErrors(verrs validator.ValidationErrors) string {
	var msgs []string
	for _, err := range verrs {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		var msg string
		switch tag {
		case "required":
			msg = fmt.Sprintf("%s is required", field)
		case "email":
			msg = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			msg = fmt.Sprintf("%s must be at least %s characters", field, param)
		case "max":
			msg = fmt.Sprintf("%s must be at most %s characters", field, param)
		case "oneof":
			msg = fmt.Sprintf("%s must be one of %s", field, param)
		case "url":
			msg = fmt.Sprintf("%s must be a valid URL", field)
		default:
			msg = fmt.Sprintf("%s validation failed on %s", tag, field)
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

// Recovery converts panics into the uniform 500 response instead of gin's
// plain-text one.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if log != nil {
					log.Error("panic recovered",
						zap.Any("panic", r),
						zap.String("path", c.Request.URL.Path))
				}
				_ = c.Error(apperrors.NewInternalError("internal server error"))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// ErrorHandler serializes the last request error as {code, error,
// code_error}. Handlers push errors with c.Error and abort; nothing else
// writes error bodies.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		lastErr := c.Errors.Last()

		var resp *apperrors.AppError
		var verrs validator.ValidationErrors
		var appErr *apperrors.AppError
		switch {
		case errors.As(lastErr.Err, &appErr):
			resp = appErr
		case errors.As(lastErr.Err, &verrs):
			resp = apperrors.NewValidationError(formatValidationErrors(verrs))
		case lastErr.Type == gin.ErrorTypeBind:
			// non-validator binding failures, e.g. malformed JSON
			resp = apperrors.NewValidationError(lastErr.Err.Error())
		default:
			// raw driver errors that escaped a handler still map to the
			// uniform taxonomy
			resp = apperrors.MapMongoError(lastErr.Err)
		}

		if log != nil && resp.Code >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", resp.Code),
				zap.String("code_error", resp.ErrorCode),
				zap.Error(lastErr.Err))
		}

		c.JSON(resp.Code, resp)
		c.Abort()
	}
}
