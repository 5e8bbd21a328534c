package apperrors

import (
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

// AppError is the uniform error shape serialized at the request boundary:
// {code, error, code_error}. Cause is kept for logging only and never
// reaches the client.
type AppError struct {
	Code      int    `json:"code"`
	Message   string `json:"error"`
	ErrorCode string `json:"code_error,omitempty"`
	Cause     error  `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Status() int { return e.Code }

func (e *AppError) Unwrap() error { return e.Cause }

func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NewWithCode(code int, message string, errorCode string) *AppError {
	return &AppError{Code: code, Message: message, ErrorCode: errorCode}
}

func NewValidationError(message string) *AppError {
	return NewWithCode(http.StatusBadRequest, message, "VALIDATION_ERROR")
}

func NewUnauthorizedError(message string) *AppError {
	return NewWithCode(http.StatusUnauthorized, message, "AUTH_REQUIRED")
}

func NewForbiddenError(message string) *AppError {
	return NewWithCode(http.StatusForbidden, message, "FORBIDDEN")
}

func NewNotFoundError(message string) *AppError {
	return NewWithCode(http.StatusNotFound, message, "NOT_FOUND")
}

func NewConflictError(message string) *AppError {
	return NewWithCode(http.StatusConflict, message, "DUPLICATE_RESOURCE")
}

func NewTokenExpiredError() *AppError {
	return NewWithCode(http.StatusUnauthorized, "token expired", "TOKEN_EXPIRED")
}

func NewInvalidTokenError() *AppError {
	return NewWithCode(http.StatusUnauthorized, "invalid token", "INVALID_TOKEN")
}

// NewOAuthError wraps an upstream provider failure. The cause is attached for
// logs; clients only see the message.
func NewOAuthError(message string, cause error) *AppError {
	return &AppError{Code: http.StatusBadGateway, Message: message, ErrorCode: "OAUTH_FAILED", Cause: cause}
}

func NewInternalError(message string) *AppError {
	return NewWithCode(http.StatusInternalServerError, message, "INTERNAL_ERROR")
}

// MapMongoError translates driver errors into the uniform taxonomy.
func MapMongoError(err error) *AppError {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NewNotFoundError("resource not found")
	}
	if mongo.IsDuplicateKeyError(err) {
		return NewConflictError("duplicate resource")
	}
	return &AppError{Code: http.StatusInternalServerError, Message: "internal server error", ErrorCode: "INTERNAL_ERROR", Cause: err}
}
