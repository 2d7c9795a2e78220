package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

type testResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
	ID      json.RawMessage `json:"id"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer()

	mustRegister(t, s, Method{
		Name: "get_methods",
		Handler: func(context.Context, Params) (any, error) {
			return s.Methods(), nil
		},
	})
	mustRegister(t, s, Method{
		Name:   "set_name",
		Params: []Param{{Name: "name", Kind: String}},
		Handler: func(_ context.Context, p Params) (any, error) {
			if p.String("name") == "" {
				return nil, errors.New("name must not be empty")
			}
			return map[string]string{"name": p.String("name")}, nil
		},
	})
	mustRegister(t, s, Method{
		Name:   "set_reading_interval",
		Params: []Param{{Name: "interval", Kind: Number}},
		Handler: func(_ context.Context, p Params) (any, error) {
			return p.Float("interval"), nil
		},
	})
	mustRegister(t, s, Method{
		Name: "explode",
		Handler: func(context.Context, Params) (any, error) {
			panic("boom")
		},
	})
	mustRegister(t, s, Method{
		Name: "offline",
		Handler: func(context.Context, Params) (any, error) {
			return nil, ErrUnavailable
		},
	})
	if err := s.Alias("set_sensor_name", "set_name"); err != nil {
		t.Fatalf("Alias() error = %v", err)
	}
	return s
}

func mustRegister(t *testing.T, s *Server, m Method) {
	t.Helper()
	if err := s.Register(m); err != nil {
		t.Fatalf("Register(%q) error = %v", m.Name, err)
	}
}

func call(t *testing.T, s *Server, body string) testResponse {
	t.Helper()
	out, err := s.Handle(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("Handle(%s) error = %v", body, err)
	}
	var resp testResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decoding %s: %v", out, err)
	}
	if resp.JSONRPC != Version {
		t.Errorf("jsonrpc = %q, want %q", resp.JSONRPC, Version)
	}
	if (resp.Result == nil) == (resp.Error == nil) {
		t.Errorf("response %s must carry exactly one of result and error", out)
	}
	return resp
}

func TestHandle_ErrorTaxonomy(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		code    int
		message string
		id      string
	}{
		{"malformed json", `{"method": "get_methods" "jsonrpc": "2.0", "id": 1}`, CodeParseError, MsgParseError, "null"},
		{"empty body", ``, CodeParseError, MsgParseError, "null"},
		{"unknown method", `{"method": "get_method", "jsonrpc": "2.0", "id": 1}`, CodeMethodNotFound, MsgMethodNotFound, "1"},
		{"string id", `{"method": "get_methods", "jsonrpc": "2.0", "id": "a"}`, CodeInvalidRequest, MsgInvalidRequest, "null"},
		{"fractional id", `{"method": "get_methods", "jsonrpc": "2.0", "id": 1.5}`, CodeInvalidRequest, MsgInvalidRequest, "null"},
		{"boolean id", `{"method": "get_methods", "jsonrpc": "2.0", "id": true}`, CodeInvalidRequest, MsgInvalidRequest, "null"},
		{"missing id", `{"method": "get_methods", "jsonrpc": "2.0"}`, CodeInvalidRequest, MsgInvalidRequest, "null"},
		{"wrong version", `{"method": "get_methods", "jsonrpc": "1.0", "id": 2}`, CodeInvalidRequest, MsgInvalidRequest, "2"},
		{"missing version", `{"method": "get_methods", "id": 2}`, CodeInvalidRequest, MsgInvalidRequest, "2"},
		{"numeric method", `{"method": 5, "jsonrpc": "2.0", "id": 3}`, CodeInvalidRequest, MsgInvalidRequest, "3"},
		{"scalar body", `42`, CodeInvalidRequest, MsgInvalidRequest, "null"},
		{"null body", `null`, CodeInvalidRequest, MsgInvalidRequest, "null"},
		{"wrong param key", `{"method": "set_name", "params": {"surname": "lenon"}, "jsonrpc": "2.0", "id": 1}`, CodeInvalidParams, MsgInvalidParams, "1"},
		{"missing param", `{"method": "set_name", "params": {}, "jsonrpc": "2.0", "id": 1}`, CodeInvalidParams, MsgInvalidParams, "1"},
		{"mistyped param", `{"method": "set_name", "params": {"name": 7}, "jsonrpc": "2.0", "id": 1}`, CodeInvalidParams, MsgInvalidParams, "1"},
		{"extra param", `{"method": "set_name", "params": {"name": "a", "x": 1}, "jsonrpc": "2.0", "id": 1}`, CodeInvalidParams, MsgInvalidParams, "1"},
		{"scalar params", `{"method": "set_name", "params": "a", "jsonrpc": "2.0", "id": 1}`, CodeInvalidParams, MsgInvalidParams, "1"},
		{"params to no-arg method", `{"method": "get_methods", "params": {"x": 1}, "jsonrpc": "2.0", "id": 1}`, CodeInvalidParams, MsgInvalidParams, "1"},
		{"domain rejection", `{"method": "set_name", "params": {"name": ""}, "jsonrpc": "2.0", "id": 1}`, CodeMethodError, MsgMethodError, "1"},
		{"string interval", `{"method": "set_reading_interval", "params": {"interval": "5"}, "jsonrpc": "2.0", "id": 4}`, CodeInvalidParams, MsgInvalidParams, "4"},
		{"panic", `{"method": "explode", "jsonrpc": "2.0", "id": 9}`, CodeInternalError, MsgInternalError, "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, tt.body)
			if resp.Error == nil {
				t.Fatalf("expected error, got result %s", resp.Result)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("code = %d, want %d", resp.Error.Code, tt.code)
			}
			if resp.Error.Message != tt.message {
				t.Errorf("message = %q, want %q", resp.Error.Message, tt.message)
			}
			if string(resp.ID) != tt.id {
				t.Errorf("id = %s, want %s", resp.ID, tt.id)
			}
		})
	}
}

func TestHandle_Success(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		result string
		id     string
	}{
		{"named params", `{"method": "set_name", "params": {"name": "new_name"}, "jsonrpc": "2.0", "id": 1}`, `{"name":"new_name"}`, "1"},
		{"positional params", `{"method": "set_name", "params": ["pos"], "jsonrpc": "2.0", "id": 2}`, `{"name":"pos"}`, "2"},
		{"alias", `{"method": "set_sensor_name", "params": {"name": "a"}, "jsonrpc": "2.0", "id": 3}`, `{"name":"a"}`, "3"},
		{"null id", `{"method": "set_name", "params": {"name": "n"}, "jsonrpc": "2.0", "id": null}`, `{"name":"n"}`, "null"},
		{"negative id", `{"method": "set_name", "params": {"name": "n"}, "jsonrpc": "2.0", "id": -7}`, `{"name":"n"}`, "-7"},
		{"fractional number param", `{"method": "set_reading_interval", "params": {"interval": 0.4}, "jsonrpc": "2.0", "id": 5}`, `0.4`, "5"},
		{"no params member", `{"method": "get_methods", "jsonrpc": "2.0", "id": 6}`, `["explode","get_methods","offline","set_name","set_reading_interval"]`, "6"},
		{"null params", `{"method": "get_methods", "params": null, "jsonrpc": "2.0", "id": 7}`, `["explode","get_methods","offline","set_name","set_reading_interval"]`, "7"},
		{"unknown member ignored", `{"method": "get_methods", "jsonrpc": "2.0", "id": 8, "extra": true}`, `["explode","get_methods","offline","set_name","set_reading_interval"]`, "8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, tt.body)
			if resp.Error != nil {
				t.Fatalf("unexpected error %v", resp.Error)
			}
			if string(resp.Result) != tt.result {
				t.Errorf("result = %s, want %s", resp.Result, tt.result)
			}
			if string(resp.ID) != tt.id {
				t.Errorf("id = %s, want %s", resp.ID, tt.id)
			}
		})
	}
}

func TestHandle_Unavailable(t *testing.T) {
	s := newTestServer(t)

	out, err := s.Handle(context.Background(), []byte(`{"method": "offline", "jsonrpc": "2.0", "id": 1}`))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Handle() error = %v, want ErrUnavailable", err)
	}
	if out != nil {
		t.Errorf("Handle() returned %s, want no response", out)
	}

	_, err = s.Handle(context.Background(), []byte(`[{"method": "nope", "jsonrpc": "2.0", "id": 1}, {"method": "offline", "jsonrpc": "2.0", "id": 2}]`))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("batch Handle() error = %v, want ErrUnavailable before any handler ran", err)
	}
}

func TestHandle_BatchAnswersUnavailableAfterExecution(t *testing.T) {
	s := newTestServer(t)

	out, err := s.Handle(context.Background(), []byte(`[
		{"method": "set_name", "params": {"name": "a"}, "jsonrpc": "2.0", "id": 1},
		{"method": "offline", "jsonrpc": "2.0", "id": 2},
		{"method": "offline", "jsonrpc": "2.0", "id": 3}
	]`))
	if err != nil {
		t.Fatalf("Handle() error = %v, want responses", err)
	}

	var responses []testResponse
	if err := json.Unmarshal(out, &responses); err != nil {
		t.Fatalf("decoding batch: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	if responses[0].Error != nil {
		t.Errorf("first response = %+v, want success", responses[0])
	}
	for i, resp := range responses[1:] {
		if resp.Error == nil || resp.Error.Code != CodeMethodError || resp.Error.Data != unavailableReason {
			t.Errorf("response %d = %+v, want unavailable method error", i+2, resp)
		}
		if want := string(rune('2' + i)); string(resp.ID) != want {
			t.Errorf("response %d id = %s, want %s", i+2, resp.ID, want)
		}
	}
	if got := s.Stats().ByCode[CodeMethodError]; got != 2 {
		t.Errorf("ByCode[-32000] = %d, want 2", got)
	}
}

func TestHandle_Batch(t *testing.T) {
	s := newTestServer(t)

	out, err := s.Handle(context.Background(), []byte(`[
		{"method": "set_name", "params": {"name": "a"}, "jsonrpc": "2.0", "id": 1},
		{"method": "nope", "jsonrpc": "2.0", "id": 2},
		{"jsonrpc": "2.0", "id": "x"}
	]`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	var responses []testResponse
	if err := json.Unmarshal(out, &responses); err != nil {
		t.Fatalf("decoding batch: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	if responses[0].Error != nil || string(responses[0].ID) != "1" {
		t.Errorf("first response = %+v, want success with id 1", responses[0])
	}
	if responses[1].Error == nil || responses[1].Error.Code != CodeMethodNotFound {
		t.Errorf("second response = %+v, want method not found", responses[1])
	}
	if responses[2].Error == nil || responses[2].Error.Code != CodeInvalidRequest {
		t.Errorf("third response = %+v, want invalid request", responses[2])
	}
}

func TestHandle_EmptyBatch(t *testing.T) {
	s := newTestServer(t)

	resp := call(t, s, `[]`)
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Errorf("empty batch response = %+v, want invalid request", resp)
	}
}

func TestHandle_NumberOutOfRange(t *testing.T) {
	s := NewServer()
	mustRegister(t, s, Method{
		Name:   "sign",
		Params: []Param{{Name: "value", Kind: Number}},
		Handler: func(_ context.Context, p Params) (any, error) {
			v := p.Float("value")
			if !math.IsInf(v, 0) {
				return nil, errors.New("want infinity")
			}
			return math.Signbit(v), nil
		},
	})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"overflow", `{"method": "sign", "params": {"value": 1e400}, "jsonrpc": "2.0", "id": 1}`, `false`},
		{"negative overflow", `{"method": "sign", "params": [-1e400], "jsonrpc": "2.0", "id": 1}`, `true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, tt.body)
			if resp.Error != nil {
				t.Fatalf("error = %+v, want the value passed to the method", resp.Error)
			}
			if string(resp.Result) != tt.want {
				t.Errorf("result = %s, want %s", resp.Result, tt.want)
			}
		})
	}
}

func TestHandle_CustomRPCError(t *testing.T) {
	s := NewServer()
	mustRegister(t, s, Method{
		Name: "picky",
		Handler: func(context.Context, Params) (any, error) {
			return nil, InvalidParams("interval and unit disagree")
		},
	})

	resp := call(t, s, `{"method": "picky", "jsonrpc": "2.0", "id": 1}`)
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("response = %+v, want invalid params", resp)
	}
	if resp.Error.Data != "interval and unit disagree" {
		t.Errorf("data = %v", resp.Error.Data)
	}
}

func TestServer_RegisterConflicts(t *testing.T) {
	s := NewServer()
	noop := func(context.Context, Params) (any, error) { return nil, nil }

	if err := s.Register(Method{Name: "a", Handler: noop}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Register(Method{Name: "a", Handler: noop}); err == nil {
		t.Error("expected error registering duplicate method")
	}
	if err := s.Register(Method{Name: "b"}); err == nil {
		t.Error("expected error registering method without handler")
	}
	if err := s.Alias("c", "missing"); err == nil {
		t.Error("expected error aliasing unknown method")
	}
	if err := s.Alias("a", "a"); err == nil {
		t.Error("expected error for alias shadowing a method")
	}
	if err := s.Alias("c", "a"); err != nil {
		t.Fatalf("Alias() error = %v", err)
	}
	if err := s.Register(Method{Name: "c", Handler: noop}); err == nil {
		t.Error("expected error registering a name already used as alias")
	}

	if got := s.Methods(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Methods() = %v, want [a]", got)
	}
}

func TestServer_Stats(t *testing.T) {
	s := newTestServer(t)

	call(t, s, `{"method": "set_name", "params": {"name": "a"}, "jsonrpc": "2.0", "id": 1}`)
	call(t, s, `{"method": "set_name", "params": {"name": ""}, "jsonrpc": "2.0", "id": 2}`)
	call(t, s, `not json`)

	stats := s.Stats()
	if stats.Requests != 3 {
		t.Errorf("Requests = %d, want 3", stats.Requests)
	}
	if stats.Errors != 2 {
		t.Errorf("Errors = %d, want 2", stats.Errors)
	}
	if stats.ByMethod["set_name"] != 2 {
		t.Errorf("ByMethod[set_name] = %d, want 2", stats.ByMethod["set_name"])
	}
	if stats.ByCode[CodeParseError] != 1 || stats.ByCode[CodeMethodError] != 1 {
		t.Errorf("ByCode = %v", stats.ByCode)
	}
}
