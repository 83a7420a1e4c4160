package dto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// The backend is loose about scalar types: numbers arrive as strings, strings
// as numbers, and anything may be null. These wrappers accept all of that and
// record whether a usable value was present. A value that cannot be read is
// treated as absent instead of failing the whole payload. Use the omitzero tag
// so absent values are not re-encoded.

var null = []byte("null")

// NullString is a string that tolerates numbers, booleans and null
type NullString struct {
	Value string
	Valid bool
}

// String returns a present string value
func String(v string) NullString {
	return NullString{Value: v, Valid: true}
}

// OptString returns an absent value for the empty string
func OptString(v string) NullString {
	if v == "" {
		return NullString{}
	}
	return String(v)
}

func (n *NullString) UnmarshalJSON(data []byte) error {
	*n = NullString{}
	if v, ok := looseString(data); ok {
		*n = String(v)
	}
	return nil
}

func (n NullString) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return null, nil
	}
	return json.Marshal(n.Value)
}

// NullInt is an integer that tolerates numeric strings, floats and null
type NullInt struct {
	Value int
	Valid bool
}

// Int returns a present integer value
func Int(v int) NullInt {
	return NullInt{Value: v, Valid: true}
}

func (n *NullInt) UnmarshalJSON(data []byte) error {
	*n = NullInt{}
	f, ok := looseFloat(data)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	*n = Int(int(math.Round(f)))
	return nil
}

func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return null, nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// NullFloat is a float that tolerates numeric strings and null
type NullFloat struct {
	Value float64
	Valid bool
}

// Float returns a present float value
func Float(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	*n = NullFloat{}
	if f, ok := looseFloat(data); ok {
		*n = Float(f)
	}
	return nil
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return null, nil
	}
	return json.Marshal(n.Value)
}

// NullBool is a boolean that tolerates "true"/"false" strings, 0/1 and null
type NullBool struct {
	Value bool
	Valid bool
}

// Bool returns a present boolean value
func Bool(v bool) NullBool {
	return NullBool{Value: v, Valid: true}
}

// OptBool returns an absent value for nil
func OptBool(v *bool) NullBool {
	if v == nil {
		return NullBool{}
	}
	return Bool(*v)
}

// Ptr returns the value as a pointer, nil when absent
func (n NullBool) Ptr() *bool {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func (n *NullBool) UnmarshalJSON(data []byte) error {
	*n = NullBool{}
	if b, ok := looseBool(data); ok {
		*n = Bool(b)
	}
	return nil
}

func (n NullBool) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return null, nil
	}
	return strconv.AppendBool(nil, n.Value), nil
}

// FloatMap is a string to float mapping; entries that are not numbers are dropped
type FloatMap map[string]float64

func (m *FloatMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		*m = nil
		return nil
	}
	out := make(FloatMap, len(raw))
	for k, v := range raw {
		if f, ok := looseFloat(v); ok {
			out[k] = f
		}
	}
	*m = out
	return nil
}

// StringMap is a string to string mapping; scalar values are stringified and
// null or structured values dropped
type StringMap map[string]string

func (m *StringMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		*m = nil
		return nil
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		if s, ok := looseString(v); ok {
			out[k] = s
		}
	}
	*m = out
	return nil
}

// BoolMap is a string to bool mapping; entries that are not booleans are dropped
type BoolMap map[string]bool

func (m *BoolMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		*m = nil
		return nil
	}
	out := make(BoolMap, len(raw))
	for k, v := range raw {
		if b, ok := looseBool(v); ok {
			out[k] = b
		}
	}
	*m = out
	return nil
}

// StringList is a list of strings; a non-list value becomes nil and null
// elements are dropped
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		*l = nil
		return nil
	}
	out := make(StringList, 0, len(raw))
	for _, v := range raw {
		if s, ok := looseString(v); ok {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

func looseString(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, null) {
		return "", false
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return "", false
		}
		return num.String(), true
	}
}

func looseFloat(data []byte) (float64, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, null) {
		return 0, false
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, false
	}
	return f, true
}

func looseBool(data []byte) (bool, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, null) {
		return false, false
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return false, false
		}
		return b, true
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return false, false
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false, false
		}
		return b, true
	}
	if f, ok := looseFloat(data); ok && (f == 0 || f == 1) {
		return f == 1, true
	}
	return false, false
}
