package template

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ValueKind tags the runtime shape of a submitted value.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindInvalid
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

// Value is one submitted field value: a string, a number, a boolean, a list of
// strings, or absent. The zero Value is absent. Any other JSON shape decodes
// to an invalid value holding the raw bytes, so the validator can report it.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
	raw  json.RawMessage
}

// Data maps template field keys to submitted values.
type Data map[string]Value

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }

// List returns a list value. The items are copied.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) Truth() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Items() ([]string, bool) { return v.list, v.kind == KindList }

// Elements decodes each element of an invalid JSON array. It reports false
// when the value is not an array.
func (v Value) Elements() ([]Value, bool) {
	if v.kind != KindInvalid {
		return nil, false
	}
	var elems []Value
	if err := json.Unmarshal(v.raw, &elems); err != nil {
		return nil, false
	}
	return elems, true
}

// IsEmpty reports whether the value counts as "not supplied": absent, null or "".
func (v Value) IsEmpty() bool {
	return v.kind == KindAbsent || (v.kind == KindString && v.str == "")
}

// Text renders the value for display and error messages.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		b, _ := json.Marshal(v.list)
		return string(b)
	case KindInvalid:
		return string(v.raw)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	case KindInvalid:
		return bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindInvalid:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar or array of strings. Objects and arrays
// holding anything other than strings decode to an invalid value rather than
// an error.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var t bool
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		*v = Bool(t)
	case '[':
		var items []string
		if err := json.Unmarshal(b, &items); err != nil {
			*v = invalidValue(b)
			return nil
		}
		*v = List(items...)
	case '{':
		*v = invalidValue(b)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*v = Number(f)
	}
	return nil
}

func invalidValue(b []byte) Value {
	raw := make(json.RawMessage, len(b))
	copy(raw, b)
	return Value{kind: KindInvalid, raw: raw}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
