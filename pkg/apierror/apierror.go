package apierror

import (
	"fmt"
	"net/http"
)

// APIError is an error that knows how it should be rendered over HTTP.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Unauthorized is the uniform credentials-validation failure. The precise
// sub-reason (missing header, bad signature, expired token, unknown user)
// is deliberately not exposed.
func Unauthorized() *APIError {
	return New("UNAUTHORIZED", "could not validate credentials", "", http.StatusUnauthorized)
}

func BadRequest(message string, field string) *APIError {
	return New("BAD_REQUEST", message, field, http.StatusBadRequest)
}
