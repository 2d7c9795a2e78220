package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Server.
// This allows the server to work with any logger implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// HandlerFunc implements a method. Returning a *Error sends it unchanged,
// ErrUnavailable suppresses the response, and any other error becomes a
// Method execution error with the error text as data.
type HandlerFunc func(ctx context.Context, params Params) (any, error)

// Method describes a callable method.
type Method struct {
	Name    string
	Params  []Param
	Handler HandlerFunc
}

// Stats is a snapshot of call counters.
type Stats struct {
	Requests uint64            `json:"requests"`
	Errors   uint64            `json:"errors"`
	ByMethod map[string]uint64 `json:"by_method"`
	ByCode   map[int]uint64    `json:"by_code"`
}

// Server validates JSON-RPC envelopes and dispatches to registered methods.
// It has no knowledge of what the methods do.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Server struct {
	mu      sync.RWMutex
	methods map[string]Method
	aliases map[string]string
	logger  Logger

	statsMu sync.Mutex
	stats   Stats
}

// NewServer creates an empty Server.
func NewServer() *Server {
	return &Server{
		methods: make(map[string]Method),
		aliases: make(map[string]string),
		logger:  noopLogger{},
		stats: Stats{
			ByMethod: make(map[string]uint64),
			ByCode:   make(map[int]uint64),
		},
	}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// Register adds a method. Registering a name twice is a programming error.
func (s *Server) Register(m Method) error {
	if m.Name == "" || m.Handler == nil {
		return fmt.Errorf("rpc: method requires a name and handler")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.methods[m.Name]; exists {
		return fmt.Errorf("rpc: method %q already registered", m.Name)
	}
	if _, exists := s.aliases[m.Name]; exists {
		return fmt.Errorf("rpc: method %q already registered as alias", m.Name)
	}
	s.methods[m.Name] = m
	return nil
}

// Alias makes alias dispatch to the registered method name.
// Aliases are not listed by Methods.
func (s *Server) Alias(alias, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.methods[name]; !ok {
		return fmt.Errorf("rpc: alias target %q not registered", name)
	}
	if _, exists := s.methods[alias]; exists {
		return fmt.Errorf("rpc: alias %q shadows a method", alias)
	}
	s.aliases[alias] = name
	return nil
}

// Methods returns the canonical method names in sorted order.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) lookup(name string) (Method, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if target, ok := s.aliases[name]; ok {
		name = target
	}
	m, ok := s.methods[name]
	return m, ok
}

func (s *Server) log() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// Handle processes one request body and returns the encoded response.
//
// A single request yields a single response object; a batch yields an
// array in request order. Protocol and method errors are encoded in the
// response and never returned as err. The only error is ErrUnavailable,
// meaning no response must be written. A batch returns it only when no
// handler has run yet; later unavailable calls are answered with a
// Method execution error.
func (s *Server) Handle(ctx context.Context, body []byte) ([]byte, error) {
	body = bytes.TrimSpace(body)

	if !json.Valid(body) {
		s.count("", CodeParseError)
		return json.Marshal(errorResponse(nil, newError(CodeParseError, nil)))
	}

	if len(body) > 0 && body[0] == '[' {
		return s.handleBatch(ctx, body)
	}

	resp, _, err := s.handleOne(ctx, body, false)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

func (s *Server) handleBatch(ctx context.Context, body []byte) ([]byte, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
		s.count("", CodeInvalidRequest)
		return json.Marshal(errorResponse(nil, newError(CodeInvalidRequest, "empty batch")))
	}

	// The exchange is dropped only while no handler has run. After that the
	// earlier replies must reach the client, so unavailable calls are
	// answered with a method error.
	responses := make([]*Response, 0, len(items))
	executed := false
	for _, item := range items {
		resp, invoked, err := s.handleOne(ctx, item, executed)
		if err != nil {
			return nil, err
		}
		executed = executed || invoked
		responses = append(responses, resp)
	}
	return json.Marshal(responses)
}

// handleOne processes a single request. invoked reports whether a handler
// ran to an answer. When the handler returns ErrUnavailable the call is
// dropped, unless answerUnavailable is set, in which case it gets a
// Method execution error.
func (s *Server) handleOne(ctx context.Context, raw json.RawMessage, answerUnavailable bool) (resp *Response, invoked bool, err error) {
	req, failure := parseRequest(raw)
	if failure != nil {
		s.count("", failure.Error.Code)
		return failure, false, nil
	}

	method, ok := s.lookup(req.Method)
	if !ok {
		s.count("", CodeMethodNotFound)
		return errorResponse(req.ID, newError(CodeMethodNotFound, req.Method)), false, nil
	}

	params, perr := bindParams(method.Params, req.Params)
	if perr != nil {
		s.count(method.Name, perr.Code)
		return errorResponse(req.ID, perr), false, nil
	}

	result, err := s.invoke(ctx, method, params)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			if !answerUnavailable {
				return nil, false, ErrUnavailable
			}
			s.count(method.Name, CodeMethodError)
			return errorResponse(req.ID, newError(CodeMethodError, unavailableReason)), false, nil
		}
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = newError(CodeMethodError, err.Error())
		}
		s.log().Debug("method failed", "method", method.Name, "code", rpcErr.Code, "error", err)
		s.count(method.Name, rpcErr.Code)
		return errorResponse(req.ID, rpcErr), true, nil
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		s.log().Error("encoding result", "method", method.Name, "error", err)
		s.count(method.Name, CodeInternalError)
		return errorResponse(req.ID, newError(CodeInternalError, nil)), true, nil
	}

	s.count(method.Name, 0)
	return &Response{JSONRPC: Version, Result: encoded, ID: req.ID}, true, nil
}

// invoke runs the handler, turning a panic into an Internal error.
func (s *Server) invoke(ctx context.Context, m Method, params Params) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log().Error("method panicked", "method", m.Name, "panic", rec)
			result, err = nil, newError(CodeInternalError, nil)
		}
	}()
	return m.Handler(ctx, params)
}

func (s *Server) count(method string, code int) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.Requests++
	if method != "" {
		s.stats.ByMethod[method]++
	}
	if code != 0 {
		s.stats.Errors++
		s.stats.ByCode[code]++
	}
}

// Stats returns a copy of the call counters.
func (s *Server) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := Stats{
		Requests: s.stats.Requests,
		Errors:   s.stats.Errors,
		ByMethod: make(map[string]uint64, len(s.stats.ByMethod)),
		ByCode:   make(map[int]uint64, len(s.stats.ByCode)),
	}
	for k, v := range s.stats.ByMethod {
		out.ByMethod[k] = v
	}
	for k, v := range s.stats.ByCode {
		out.ByCode[k] = v
	}
	return out
}
