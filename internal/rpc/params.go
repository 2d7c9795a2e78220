package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind is the JSON type a parameter must carry.
type Kind int

// Parameter kinds.
const (
	String Kind = iota
	Integer
	Number
	Boolean
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Param declares one named parameter of a method.
type Param struct {
	Name     string
	Kind     Kind
	Optional bool
}

// Params holds decoded parameter values keyed by name.
// Values are string, int64, float64 or bool according to the declared Kind.
type Params map[string]any

// String returns the named string parameter, or "" when absent.
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Int returns the named integer parameter, or 0 when absent.
func (p Params) Int(name string) int64 {
	n, _ := p[name].(int64)
	return n
}

// Float returns the named number parameter, or 0 when absent.
func (p Params) Float(name string) float64 {
	f, _ := p[name].(float64)
	return f
}

// Bool returns the named boolean parameter, or false when absent.
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// Has reports whether the named parameter was supplied.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// bindParams checks raw params against the declaration. Names must match
// exactly: unknown keys, missing required keys and type mismatches are
// all Invalid params.
func bindParams(decl []Param, raw json.RawMessage) (Params, *Error) {
	out := make(Params, len(decl))

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, checkRequired(decl, out)
	}

	switch raw[0] {
	case '{':
		var named map[string]json.RawMessage
		if err := json.Unmarshal(raw, &named); err != nil {
			return nil, InvalidParams("params must be an object or array")
		}
		for key, value := range named {
			p, ok := lookupParam(decl, key)
			if !ok {
				return nil, InvalidParams(fmt.Sprintf("unexpected parameter %q", key))
			}
			v, err := decodeValue(p, value)
			if err != nil {
				return nil, err
			}
			out[p.Name] = v
		}
	case '[':
		var positional []json.RawMessage
		if err := json.Unmarshal(raw, &positional); err != nil {
			return nil, InvalidParams("params must be an object or array")
		}
		if len(positional) > len(decl) {
			return nil, InvalidParams(fmt.Sprintf("expected at most %d parameters, got %d", len(decl), len(positional)))
		}
		for i, value := range positional {
			v, err := decodeValue(decl[i], value)
			if err != nil {
				return nil, err
			}
			out[decl[i].Name] = v
		}
	default:
		return nil, InvalidParams("params must be an object or array")
	}

	return out, checkRequired(decl, out)
}

func lookupParam(decl []Param, name string) (Param, bool) {
	for _, p := range decl {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func checkRequired(decl []Param, got Params) *Error {
	for _, p := range decl {
		if !p.Optional && !got.Has(p.Name) {
			return InvalidParams(fmt.Sprintf("missing parameter %q", p.Name))
		}
	}
	return nil
}

func decodeValue(p Param, raw json.RawMessage) (any, *Error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, InvalidParams(fmt.Sprintf("parameter %q is malformed", p.Name))
	}

	mismatch := InvalidParams(fmt.Sprintf("parameter %q must be %s", p.Name, p.Kind))

	switch p.Kind {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch
		}
		return s, nil
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch
		}
		return b, nil
	case Integer:
		n, ok := v.(json.Number)
		if !ok {
			return nil, mismatch
		}
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
			return nil, mismatch
		}
		return int64(f), nil
	case Number:
		n, ok := v.(json.Number)
		if !ok {
			return nil, mismatch
		}
		// Out-of-range numbers parse as ±Inf and are left to the method.
		f, err := n.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, mismatch
		}
		return f, nil
	default:
		return nil, mismatch
	}
}
