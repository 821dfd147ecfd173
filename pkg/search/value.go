package search

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

var kindNames = [...]string{"null", "string", "int", "float", "bool", "list", "map"}

// String returns the kind name used in the JSON encoding.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func parseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return KindNull, false
}

// Value is a tagged union of the primitive types carried in extension maps.
// The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	l    []Value
	m    map[string]Value
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list Value holding items.
func List(items ...Value) Value { return Value{kind: KindList, l: items} }

// Map returns a map Value holding fields.
func Map(fields map[string]Value) Value { return Value{kind: KindMap, m: fields} }

// ValueOf converts a Go value, as produced by YAML or JSON decoding, into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, NewParamError("Value", "invalid number %q", x.String())
		}
		return Float(f), nil
	case []string:
		items := make([]Value, len(x))
		for i, s := range x {
			items[i] = String(s)
		}
		return List(items...), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			converted, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = converted
		}
		return List(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			converted, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = converted
		}
		return Map(fields), nil
	case map[string]string:
		fields := make(map[string]Value, len(x))
		for k, s := range x {
			fields[k] = String(s)
		}
		return Map(fields), nil
	default:
		return Value{}, NewParamError("Value", "unsupported value type %T", v)
	}
}

// MustValueOf is ValueOf for literals known to be convertible.
func MustValueOf(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Kind returns the kind of value held.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns the items held by v.
func (v Value) AsList() ([]Value, bool) { return v.l, v.kind == KindList }

// AsFloat returns float and int values as float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsMap returns the fields held by v.
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Interface returns the plain Go representation of v.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.l))
		for i, item := range v.l {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// Equal compares values structurally. Maps are compared by content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.l) != len(o.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(o.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return Params(v.m).Equal(Params(o.m))
	}
	return false
}

// String renders v for humans.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.s
	}
	return fmt.Sprint(v.Interface())
}

// writeCanonical writes a stable, type-tagged encoding of v.
func (v Value) writeCanonical(w io.Writer) {
	switch v.kind {
	case KindNull:
		io.WriteString(w, "n")
	case KindString:
		io.WriteString(w, "s"+strconv.Itoa(len(v.s))+":"+v.s)
	case KindInt:
		io.WriteString(w, "i"+strconv.FormatInt(v.i, 10)+";")
	case KindFloat:
		io.WriteString(w, "f"+strconv.FormatUint(math.Float64bits(v.f), 16)+";")
	case KindBool:
		if v.b {
			io.WriteString(w, "b1")
		} else {
			io.WriteString(w, "b0")
		}
	case KindList:
		io.WriteString(w, "l"+strconv.Itoa(len(v.l))+"[")
		for _, item := range v.l {
			item.writeCanonical(w)
		}
		io.WriteString(w, "]")
	case KindMap:
		keys := Params(v.m).Keys()
		io.WriteString(w, "m"+strconv.Itoa(len(keys))+"{")
		for _, k := range keys {
			io.WriteString(w, strconv.Itoa(len(k))+":"+k)
			v.m[k].writeCanonical(w)
		}
		io.WriteString(w, "}")
	}
}

type valueJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes v with an explicit kind tag so ints and floats
// survive a round trip.
func (v Value) MarshalJSON() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch v.kind {
	case KindNull:
		return json.Marshal(valueJSON{Kind: v.kind.String()})
	case KindString:
		raw, err = json.Marshal(v.s)
	case KindInt:
		raw, err = json.Marshal(v.i)
	case KindFloat:
		raw, err = json.Marshal(v.f)
	case KindBool:
		raw, err = json.Marshal(v.b)
	case KindList:
		items := v.l
		if items == nil {
			items = []Value{}
		}
		raw, err = json.Marshal(items)
	case KindMap:
		fields := v.m
		if fields == nil {
			fields = map[string]Value{}
		}
		raw, err = json.Marshal(fields)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodes the tagged form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var env valueJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	kind, ok := parseKind(env.Kind)
	if !ok {
		return fmt.Errorf("decode value: unknown kind %q", env.Kind)
	}
	out := Value{kind: kind}
	var err error
	switch kind {
	case KindNull:
	case KindString:
		err = json.Unmarshal(env.Value, &out.s)
	case KindInt:
		err = json.Unmarshal(env.Value, &out.i)
	case KindFloat:
		err = json.Unmarshal(env.Value, &out.f)
	case KindBool:
		err = json.Unmarshal(env.Value, &out.b)
	case KindList:
		err = json.Unmarshal(env.Value, &out.l)
	case KindMap:
		err = json.Unmarshal(env.Value, &out.m)
	}
	if err != nil {
		return fmt.Errorf("decode %s value: %w", kind, err)
	}
	*v = out
	return nil
}

// Params is the typed extension map carried by queries, results and engine
// configuration.
type Params map[string]Value

// ParamsOf converts a plain map, e.g. decoded YAML, into Params.
func ParamsOf(m map[string]any) (Params, error) {
	if len(m) == 0 {
		return nil, nil
	}
	p := make(Params, len(m))
	for k, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", k, err)
		}
		p[k] = v
	}
	return p, nil
}

// Keys returns the keys in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy. Values are immutable by convention.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Equal compares by content; a nil map equals an empty one.
func (p Params) Equal(o Params) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// String returns the string value at key, or "" if absent or not a string.
func (p Params) String(key string) string {
	s, _ := p[key].AsString()
	return s
}

// Int returns the integer at key. Whole floats and numeric strings are
// accepted since config files are loose about numbers.
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindInt:
		return int(v.i)
	case KindFloat:
		if v.f == math.Trunc(v.f) {
			return int(v.f)
		}
	case KindString:
		if n, err := strconv.Atoi(v.s); err == nil {
			return n
		}
	}
	return def
}

// Float returns the number at key.
func (p Params) Float(key string, def float64) float64 {
	if f, ok := p[key].AsFloat(); ok {
		return f
	}
	return def
}

// Bool returns the boolean at key.
func (p Params) Bool(key string, def bool) bool {
	if b, ok := p[key].AsBool(); ok {
		return b
	}
	return def
}
