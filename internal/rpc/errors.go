package rpc

import (
	"errors"
	"fmt"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeMethodError is the implementation-defined code for a well-formed
	// call that the method rejected on domain grounds.
	CodeMethodError = -32000
)

// Canonical error messages. Clients compare these verbatim.
const (
	MsgParseError     = "Parse error"
	MsgInvalidRequest = "Invalid request"
	MsgMethodNotFound = "Method not found"
	MsgInvalidParams  = "Invalid params"
	MsgInternalError  = "Internal error"
	MsgMethodError    = "Method execution error"
)

// ErrUnavailable is returned by a handler when the service cannot answer
// at all. Handle propagates it instead of producing a response so the
// transport can drop the exchange.
var ErrUnavailable = errors.New("rpc: service unavailable")

// unavailableReason is the data of the error that answers an unavailable
// call inside a batch that has already changed state.
const unavailableReason = "service unavailable"

// Error is the JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// newError builds an Error with the canonical message for code.
func newError(code int, data any) *Error {
	return &Error{Code: code, Message: messageFor(code), Data: data}
}

// InvalidParams returns an Invalid params error carrying detail. Handlers
// use it for cross-field checks the declared parameter kinds cannot express.
func InvalidParams(detail string) *Error {
	return newError(CodeInvalidParams, detail)
}

func messageFor(code int) string {
	switch code {
	case CodeParseError:
		return MsgParseError
	case CodeInvalidRequest:
		return MsgInvalidRequest
	case CodeMethodNotFound:
		return MsgMethodNotFound
	case CodeInvalidParams:
		return MsgInvalidParams
	case CodeMethodError:
		return MsgMethodError
	default:
		return MsgInternalError
	}
}
