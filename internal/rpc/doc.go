// Package rpc implements the JSON-RPC 2.0 envelope used by the sensor.
//
// The Server parses and validates request framing, binds named or
// positional parameters against a declared signature, dispatches to a
// registered handler and encodes the response. It knows nothing about
// the methods themselves.
//
// # Error taxonomy
//
//	-32700  Parse error             body is not JSON
//	-32600  Invalid request         bad envelope or non-integer id
//	-32601  Method not found
//	-32602  Invalid params          unknown, missing or mistyped keys
//	-32603  Internal error          handler panicked
//	-32000  Method execution error  handler rejected the input
//
// Handlers signal domain rejection with a plain error. ErrUnavailable is
// the single out-of-band signal: Handle returns it instead of a response
// and the transport drops the exchange. Inside a batch it is only
// returned while no handler has run; after that the unavailable call is
// answered with a Method execution error.
package rpc
