package handler

import (
	"errors"
	"net/http"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Error is the structured error replied to clients.
type Error struct {
	StatusCode int    `json:"statusCode"`
	Title      string `json:"error"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard error messages.
const (
	MsgMissingCriteriaResolver = "options.CriteriaResolver is required"
	MsgNotAUniqueID            = "Not a unique id"
	MsgNotFound                = "Not Found"
	MsgInvalidPayload          = "payload must be an object or an array of objects"
	MsgEmptyCreate             = "store created no records"
)

func newError(status int, msg string) *Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{
		StatusCode: status,
		Title:      http.StatusText(status),
		Message:    msg,
	}
}

// BadImplementation reports a server side failure: a misconfigured handler
// or a failing store.
func BadImplementation(msg string) *Error {
	return newError(http.StatusInternalServerError, msg)
}

// BadData reports a request the handler understood but cannot process.
func BadData(msg string) *Error {
	return newError(http.StatusUnprocessableEntity, msg)
}

// BadRequest reports a malformed request.
func BadRequest(msg string) *Error {
	return newError(http.StatusBadRequest, msg)
}

// NotFound reports an empty result for get, update or delete.
func NotFound(msg string) *Error {
	if msg == "" {
		msg = MsgNotFound
	}
	return newError(http.StatusNotFound, msg)
}

// Unauthorized reports missing or invalid credentials.
func Unauthorized(msg string) *Error {
	return newError(http.StatusUnauthorized, msg)
}

// AsError maps err to the *Error replied to the client. An *Error anywhere
// in the chain is returned as is, types.ErrNotFound becomes NotFound, and
// everything else becomes BadImplementation carrying err's message.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, types.ErrNotFound) {
		return NotFound("")
	}
	return BadImplementation(err.Error())
}
