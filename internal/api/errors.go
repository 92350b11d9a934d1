package api

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "could not validate credentials"}
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrUserNotFound       = &AppError{Code: http.StatusNotFound, Message: "user not found"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrServiceUnavailable = &AppError{Code: http.StatusServiceUnavailable, Message: "service temporarily unavailable"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Message: "invalid email or password"}
	ErrIncorrectLogin     = &AppError{Code: http.StatusBadRequest, Message: "Incorrect email or password"}
	ErrInactiveUser       = &AppError{Code: http.StatusBadRequest, Message: "inactive user"}
	ErrEmailAlreadyExists = &AppError{Code: http.StatusConflict, Message: "email already registered"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Message: "invalid or expired token"}
	ErrInvalidResetToken  = &AppError{Code: http.StatusBadRequest, Message: "invalid token"}
	ErrResetTokenExpired  = &AppError{Code: http.StatusBadRequest, Message: "token expired"}
	ErrQuotaExceeded      = &AppError{Code: http.StatusTooManyRequests, Message: "AI usage quota exceeded"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
