package api

import "net/http"

// Code is one of the error taxonomy values from spec.md §9.
type Code string

const (
	CodeValidation      Code = "validation_error"
	CodePolicyDenied    Code = "policy_denied"
	CodeNotFound        Code = "not_found"
	CodeLogsUnavailable Code = "logs_unavailable"
	CodeRateLimited     Code = "rate_limited"
	CodeInternal        Code = "internal"
)

var statusByCode = map[Code]int{
	CodeValidation:      http.StatusBadRequest,
	CodePolicyDenied:    http.StatusForbidden,
	CodeNotFound:        http.StatusNotFound,
	CodeLogsUnavailable: http.StatusConflict,
	CodeRateLimited:     http.StatusTooManyRequests,
	CodeInternal:        http.StatusInternalServerError,
}

// AppError is the one error type every handler returns; writeError maps it
// onto the HTTP status and JSON error envelope.
type AppError struct {
	Code    Code
	Message string
	Field   string
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) httpStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func validationErr(message, field string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Field: field}
}

func policyDeniedErr(message string) *AppError {
	return &AppError{Code: CodePolicyDenied, Message: message}
}

func notFoundErr(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func logsUnavailableErr(message string) *AppError {
	return &AppError{Code: CodeLogsUnavailable, Message: message}
}

func internalErr(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message}
}
