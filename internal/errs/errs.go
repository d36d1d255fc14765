package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure the way the storefront reports it to the user.
type Kind string

const (
	// KindAuthentication: missing, invalid or expired credential.
	KindAuthentication Kind = "authentication"
	// KindAuthorization: the server refused the call (403).
	KindAuthorization Kind = "authorization"
	// KindValidation: malformed input or a rejected business rule such as stock exceeded.
	KindValidation Kind = "validation"
	// KindNetwork: the request never produced an HTTP response.
	KindNetwork Kind = "network"
	// KindRemote: any other non-success response.
	KindRemote Kind = "remote"
)

// Error is a classified failure. Status is the HTTP status when one was received.
type Error struct {
	Kind    Kind   `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Authentication is shorthand for New(KindAuthentication, message, nil).
func Authentication(message string) *Error {
	return New(KindAuthentication, message, nil)
}

// Validation is shorthand for New(KindValidation, message, nil).
func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

// Network wraps a transport failure.
func Network(err error) *Error {
	return New(KindNetwork, "request failed", err)
}

// FromStatus maps a non-success HTTP status and its body message to an Error.
func FromStatus(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	var kind Kind
	switch status {
	case http.StatusUnauthorized:
		kind = KindAuthentication
	case http.StatusForbidden:
		kind = KindAuthorization
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		kind = KindValidation
	default:
		kind = KindRemote
	}
	return &Error{Kind: kind, Status: status, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus picks the status a facade should answer with for err.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNetwork:
		return http.StatusBadGateway
	default:
		if e.Status >= 400 {
			return e.Status
		}
		return http.StatusBadGateway
	}
}
