package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
)

// ValueKind is the type tag of a payload Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueNumber
	ValueString
	ValueList
	ValueMap
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueList:
		return "list"
	case ValueMap:
		return "map"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is an arbitrary nested payload value. Only the field matching Kind is
// meaningful. A Value owns its List and Map; use Clone before sharing.
//
// Numbers decoded from JSON keep their literal text in Literal and are
// re-encoded from it, so integers beyond 2^53 survive a round trip even
// though Number holds only the nearest float64.
type Value struct {
	Kind    ValueKind
	Bool    bool
	Number  float64
	Literal string
	Str     string
	List    []Value
	Map     map[string]Value
}

func Null() Value                  { return Value{Kind: ValueNull} }
func Bool(b bool) Value            { return Value{Kind: ValueBool, Bool: b} }
func Number(n float64) Value       { return Value{Kind: ValueNumber, Number: n} }
func String(s string) Value        { return Value{Kind: ValueString, Str: s} }
func List(items ...Value) Value    { return Value{Kind: ValueList, List: items} }
func Map(m map[string]Value) Value { return Value{Kind: ValueMap, Map: m} }

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	out := v
	switch v.Kind {
	case ValueList:
		out.List = make([]Value, len(v.List))
		for i, item := range v.List {
			out.List[i] = item.Clone()
		}
	case ValueMap:
		out.Map = make(map[string]Value, len(v.Map))
		for k, item := range v.Map {
			out.Map[k] = item.Clone()
		}
	}
	return out
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueNull:
		return true
	case ValueBool:
		return v.Bool == o.Bool
	case ValueNumber:
		return v.numberEqual(o)
	case ValueString:
		return v.Str == o.Str
	case ValueList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case ValueMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, item := range v.Map {
			other, ok := o.Map[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// numberEqual compares integer literals exactly and everything else as float64.
func (v Value) numberEqual(o Value) bool {
	if v.Literal != "" && o.Literal != "" {
		a, okA := new(big.Int).SetString(v.Literal, 10)
		b, okB := new(big.Int).SetString(o.Literal, 10)
		if okA && okB {
			return a.Cmp(b) == 0
		}
	}
	return v.Number == o.Number
}

// Interface converts v into plain Go values (nil, bool, float64, string,
// []interface{}, map[string]interface{}).
func (v Value) Interface() interface{} {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueNumber:
		return v.Number
	case ValueString:
		return v.Str
	case ValueList:
		out := make([]interface{}, len(v.List))
		for i, item := range v.List {
			out[i] = item.Interface()
		}
		return out
	case ValueMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, item := range v.Map {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts decoded JSON-like Go values into a Value.
func FromInterface(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		v := Number(f)
		v.Literal = t.String()
		return v, nil
	case string:
		return String(t), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return Map(m), nil
	default:
		return Value{}, fmt.Errorf("unsupported payload type %T", x)
	}
}

// MarshalJSON encodes v with map keys in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.Kind {
	case ValueList:
		buf.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case ValueMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.Map[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case ValueNumber:
		if v.Literal != "" {
			buf.WriteString(v.Literal)
			return nil
		}
		b, err := json.Marshal(v.Number)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	default:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// UnmarshalJSON decodes any JSON value into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
