// Package result implements the JSON-like value tree returned by every
// range query API operation: scalars, ordered arrays, and order-preserving
// objects, plus a custom encoder that keeps object key order stable instead
// of the alphabetic resort encoding/json applies to map values.
package result

import "sort"

// Kind discriminates the concrete shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindTuple
	KindObject
)

// Value is a tagged union over the result tree's seven shapes. Only the
// field matching Kind is meaningful.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	str     string
	items   []Value
	fields  []objectField
}

type objectField struct {
	key   string
	value Value
}

// Null is the JSON null value.
var Null = Value{kind: KindNull}

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// StringSlice builds a String array from ss, in order.
func StringSlice(ss []string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Array(items...)
}

// Array builds an ordered, JSON-array-encoded Value.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: items}
}

// Tuple builds a fixed-arity ordered Value, encoded as a JSON array but
// distinguished from Array for callers that need to tell "list" from
// "record" shapes apart (the range query language distinguishes them; see
// spec §4.10).
func Tuple(items ...Value) Value {
	return Value{kind: KindTuple, items: items}
}

// Object is an order-preserving map: field insertion order survives
// encoding, unlike encoding/json's alphabetic map-key sort.
type Object struct {
	v Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{v: Value{kind: KindObject}}
}

// Set appends key/value, or overwrites the existing value in place if key
// was already set (preserving its original position).
func (o *Object) Set(key string, v Value) *Object {
	for i := range o.v.fields {
		if o.v.fields[i].key == key {
			o.v.fields[i].value = v
			return o
		}
	}
	o.v.fields = append(o.v.fields, objectField{key: key, value: v})
	return o
}

// SortKeys reorders fields alphabetically by key. Most call sites rely on
// insertion order instead; this exists for outputs the spec defines as
// lexically sorted (e.g. get_keys).
func (o *Object) SortKeys() *Object {
	sort.Slice(o.v.fields, func(i, j int) bool { return o.v.fields[i].key < o.v.fields[j].key })
	return o
}

// Value returns the finished Object as a Value.
func (o *Object) Value() Value { return o.v }

// Kind reports v's shape.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns v's boolean payload; zero value if v is not KindBool.
func (v Value) Bool() bool { return v.boolean }

// Number returns v's numeric payload; zero value if v is not KindNumber.
func (v Value) Number() float64 { return v.number }

// String returns v's string payload; empty if v is not KindString.
func (v Value) String() string { return v.str }

// Items returns v's array/tuple elements; nil if v is not KindArray or
// KindTuple.
func (v Value) Items() []Value { return v.items }

// Field returns the value stored under key in an Object Value, and whether
// it was present.
func (v Value) Field(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return Value{}, false
}

// Keys returns an Object Value's field names in insertion order.
func (v Value) Keys() []string {
	keys := make([]string, len(v.fields))
	for i, f := range v.fields {
		keys[i] = f.key
	}
	return keys
}
