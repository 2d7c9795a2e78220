package rpc

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Version is the only protocol version accepted.
const Version = "2.0"

// Request is a validated JSON-RPC request.
type Request struct {
	Method string
	Params json.RawMessage

	// ID is the raw integer literal, or nil for a null id.
	ID json.RawMessage
}

// Response is a JSON-RPC response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

func errorResponse(id json.RawMessage, e *Error) *Response {
	return &Response{JSONRPC: Version, Error: e, ID: id}
}

// parseRequest validates the envelope of a single request object.
//
// On failure the returned Response is ready to send. Its id echoes the
// request id when that id was itself valid, otherwise it is null.
func parseRequest(raw json.RawMessage) (*Request, *Response) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil || members == nil {
		return nil, errorResponse(nil, newError(CodeInvalidRequest, "request must be an object"))
	}

	idRaw, ok := members["id"]
	if !ok {
		return nil, errorResponse(nil, newError(CodeInvalidRequest, "id is required"))
	}
	id, ok := parseID(idRaw)
	if !ok {
		return nil, errorResponse(nil, newError(CodeInvalidRequest, "id must be an integer or null"))
	}

	var version string
	if err := json.Unmarshal(members["jsonrpc"], &version); err != nil || version != Version {
		return nil, errorResponse(id, newError(CodeInvalidRequest, `jsonrpc must be "2.0"`))
	}

	var method string
	if err := json.Unmarshal(members["method"], &method); err != nil || method == "" {
		return nil, errorResponse(id, newError(CodeInvalidRequest, "method must be a non-empty string"))
	}

	return &Request{Method: method, Params: members["params"], ID: id}, nil
}

// parseID accepts an integer literal or null. Strings, booleans and
// numbers with a fraction or exponent are rejected.
func parseID(raw json.RawMessage) (json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	if _, err := strconv.ParseInt(string(raw), 10, 64); err != nil {
		return nil, false
	}
	return raw, true
}
