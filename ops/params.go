package ops

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params are the named arguments of one call. Values may be JSON numbers
// (float64), json.Number, Go integers, or strings holding a number.
type Params map[string]any

// ParamError reports a missing or malformed argument.
type ParamError struct {
	Name   string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %s: %s", e.Name, e.Reason)
}

func (p Params) lookup(name string) (any, bool) {
	v, ok := p[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Float returns a numeric argument, or def when absent and not required.
func (p Params) Float(name string, required bool, def float64) (float64, error) {
	v, ok := p.lookup(name)
	if !ok {
		if required {
			return 0, &ParamError{Name: name, Reason: "required"}
		}
		return def, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, &ParamError{Name: name, Reason: "not a number"}
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &ParamError{Name: name, Reason: "not a number"}
		}
		f = parsed
	default:
		return 0, &ParamError{Name: name, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ParamError{Name: name, Reason: "not finite"}
	}
	return f, nil
}

// Int returns an integral argument, or def when absent and not required.
func (p Params) Int(name string, required bool, def int) (int, error) {
	f, err := p.Float(name, required, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, &ParamError{Name: name, Reason: "not an integer"}
	}
	return int(f), nil
}

// String returns a string argument, or def when absent and not required.
// Numbers are accepted and formatted.
func (p Params) String(name string, required bool, def string) (string, error) {
	v, ok := p.lookup(name)
	if !ok {
		if required {
			return "", &ParamError{Name: name, Reason: "required"}
		}
		return def, nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	default:
		return "", &ParamError{Name: name, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}
