package duoapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when the body is not a Duo envelope.
var ErrMalformedResponse = errors.New("duoapi: malformed response")

// APIError is a Duo "stat": "FAIL" response.
type APIError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int

	// Code is the five digit Duo error code, e.g. 40103 for an invalid signature
	Code int

	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("duoapi: %d %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("duoapi: %d %s", e.Code, e.Message)
}

// Unauthorized reports whether Duo rejected the credentials or signature.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code/100 == 401
}

// IsUnauthorized reports whether err carries an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
