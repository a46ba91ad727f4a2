// ABOUTME: Permissive tool argument access shared by every builtin pack.
// ABOUTME: Missing or mistyped fields fall back field by field instead of failing the call.

package builtins

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// args is a tool's arguments object with each value kept raw. Tools read
// fields individually so one malformed field never rejects the whole call.
type args map[string]json.RawMessage

// parseArgs decodes input as an object. Anything else yields no fields.
func parseArgs(input json.RawMessage) args {
	var a args
	if err := json.Unmarshal(input, &a); err != nil || a == nil {
		return args{}
	}
	return a
}

// raw returns the field's JSON text, or nil when absent.
func (a args) raw(key string) json.RawMessage {
	v, ok := a[key]
	if !ok {
		return nil
	}
	return v
}

// str returns a string field and whether the field held a JSON string.
// null is not a string.
func (a args) str(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// text renders a field for use in lookup keys: strings as-is, other values
// as their compact JSON text, and absent fields as "".
func (a args) text(key string) string {
	if s, ok := a.str(key); ok {
		return s
	}
	v, ok := a[key]
	if !ok {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

// days reads a day count. Absent fields take def and null counts as zero.
// Booleans count as 0/1 and numeric strings are parsed; anything else is NaN,
// which the store rejects as an unrepresentable date.
func (a args) days(key string, def float64) float64 {
	v, ok := a[key]
	if !ok {
		return def
	}

	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return math.NaN()
	}

	switch n := x.(type) {
	case nil:
		return 0
	case float64:
		return n
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// size counts the members of a payload: object keys, array elements, or
// UTF-16 code units of a string. Every other value counts as zero.
func size(v json.RawMessage) int {
	if len(v) == 0 {
		return 0
	}

	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return 0
	}

	switch p := x.(type) {
	case map[string]any:
		return len(p)
	case []any:
		return len(p)
	case string:
		return len(utf16.Encode([]rune(p)))
	default:
		return 0
	}
}

// marshal encodes v without HTML escaping so text payloads read like plain JSON.
func marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
