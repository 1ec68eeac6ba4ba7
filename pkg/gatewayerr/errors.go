// Package gatewayerr implements the gateway's error taxonomy: a single
// error type carrying a wire-visible type/code pair plus the HTTP status
// it maps to.
package gatewayerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is the wire-visible error.type value.
type Type string

const (
	TypeValidation     Type = "validation_error"
	TypeAuthentication Type = "authentication_error"
	TypeNotFound       Type = "not_found"
	TypeUpstream       Type = "upstream_error"
	TypeTimeout        Type = "timeout"
	TypeContentFilter  Type = "content_filter"
	TypeMaxOutputToken Type = "max_output_tokens"
	TypeStream         Type = "stream_error"
	TypeInternal       Type = "internal_error"
)

// GatewayError is the single error shape surfaced across the API.
type GatewayError struct {
	ErrType    Type
	Message    string
	Code       string
	HTTPStatus int
	Cause      error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.ErrType, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.ErrType, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// As reports whether err is (or wraps) a *GatewayError.
func As(err error) (*GatewayError, bool) {
	var ge *GatewayError
	ok := errors.As(err, &ge)
	return ge, ok
}

func newErr(t Type, status int, code, msg string, cause error) *GatewayError {
	return &GatewayError{ErrType: t, Message: msg, Code: code, HTTPStatus: status, Cause: cause}
}

func NewValidationError(code, msg string) *GatewayError {
	return newErr(TypeValidation, http.StatusBadRequest, code, msg, nil)
}

func NewAuthenticationError(msg string) *GatewayError {
	return newErr(TypeAuthentication, http.StatusUnauthorized, "authentication_error", msg, nil)
}

func NewNotFoundError(kind, id string) *GatewayError {
	return newErr(TypeNotFound, http.StatusNotFound, "not_found", fmt.Sprintf("%s %q not found", kind, id), nil)
}

func NewUpstreamError(msg string, cause error) *GatewayError {
	return newErr(TypeUpstream, http.StatusBadGateway, "upstream_error", msg, cause)
}

func NewTimeoutError(msg string) *GatewayError {
	return newErr(TypeTimeout, http.StatusGatewayTimeout, "timeout", msg, nil)
}

// NewContentFilterError reports HTTP 200 with status=failed in the body,
// per the error-handling design: upstream flagged content is not itself an
// HTTP-layer failure.
func NewContentFilterError(msg string) *GatewayError {
	return newErr(TypeContentFilter, http.StatusOK, "content_filter", msg, nil)
}

// NewMaxOutputTokensError reports HTTP 200 with status=incomplete in the body.
func NewMaxOutputTokensError(msg string) *GatewayError {
	return newErr(TypeMaxOutputToken, http.StatusOK, "max_output_tokens", msg, nil)
}

func NewStreamError(msg string, cause error) *GatewayError {
	return newErr(TypeStream, 0, "stream_error", msg, cause)
}

func NewInternalError(msg string, cause error) *GatewayError {
	return newErr(TypeInternal, http.StatusInternalServerError, "internal_error", msg, cause)
}
