package compute

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a compute failure.
type ErrorKind int

const (
	KindInvalidRequest ErrorKind = iota
	KindNotFound
	KindMalformedEnvelope
	KindProviderFailure
	KindUnauthorized
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindMalformedEnvelope:
		return "malformed_envelope"
	case KindProviderFailure:
		return "provider_failure"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Standard messages returned to clients.
const (
	MsgMalformedBody     = "Malformed request body"
	MsgInvalidInstanceID = "Invalid instance ID specified."
	MsgInstanceNotFound  = "Instance could not be found"
	MsgComputeFault      = "The server has either erred or is incapable of performing the requested operation."
	MsgUnauthorized      = "The request you have made requires authentication."
	MsgForbidden         = "Policy doesn't allow this operation to be performed."
)

// Error is a typed compute failure. Every component raises these; only
// Envelope turns one into a client response.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidRequestError creates a client-correctable failure.
func NewInvalidRequestError(format string, a ...any) *Error {
	return &Error{
		Kind:       KindInvalidRequest,
		Message:    fmt.Sprintf(format, a...),
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a failure for a missing instance or resource.
func NewNotFoundError(message string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewMalformedEnvelopeError creates a failure for an unusable action body.
func NewMalformedEnvelopeError(cause error) *Error {
	return &Error{
		Kind:       KindMalformedEnvelope,
		Message:    MsgMalformedBody,
		StatusCode: http.StatusBadRequest,
		Err:        cause,
	}
}

// NewUnauthorizedError creates a failure for a request with no identity.
func NewUnauthorizedError() *Error {
	return &Error{Kind: KindUnauthorized, Message: MsgUnauthorized, StatusCode: http.StatusUnauthorized}
}

// NewForbiddenError creates a failure for an identity acting outside its
// tenant.
func NewForbiddenError() *Error {
	return &Error{Kind: KindForbidden, Message: MsgForbidden, StatusCode: http.StatusForbidden}
}

// NewProviderError wraps a failed provider call. status is 400 when the
// provider rejected creation parameters and 500 for failed lifecycle actions.
func NewProviderError(status int, err error) *Error {
	msg := MsgComputeFault
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Kind:       KindProviderFailure,
		Message:    msg,
		StatusCode: status,
		Err:        err,
	}
}

// IsKind reports whether err is a compute Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Kind == kind
	}
	return false
}

// Fault is the body of a standardized error envelope.
type Fault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Envelope maps any error onto the standardized error envelope and its
// status code. Errors that are not compute Errors become a generic
// computeFault so nothing internal leaks to the client.
func Envelope(err error) (int, map[string]Fault) {
	var cErr *Error
	if !errors.As(err, &cErr) {
		return http.StatusInternalServerError, map[string]Fault{
			faultKind(http.StatusInternalServerError): {Code: http.StatusInternalServerError, Message: MsgComputeFault},
		}
	}

	status := cErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, map[string]Fault{
		faultKind(status): {Code: status, Message: cErr.Message},
	}
}

func faultKind(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "badRequest"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "notFound"
	default:
		return "computeFault"
	}
}
