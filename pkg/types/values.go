package types

import (
	"bytes"
	"encoding/json"
)

// Value is a resolved field value. Its concrete type is one of:
//
//	string      single-value field
//	[]string    multi-value field, or a repeated single-value field (one per row)
//	[][]string  repeated multi-value field (one slice per row)
//	[]Row       repeatable group in a full value tree
type Value = any

// Row is one row of a repeatable group: every field of the group is a key.
type Row map[string]any

// Values is an ordered mapping from field or group name to Value. Keys keep
// the order in which the schema declares them.
type Values struct {
	keys []string
	m    map[string]Value
}

// NewValues returns an empty tree.
func NewValues() *Values {
	return &Values{m: make(map[string]Value)}
}

// Set stores v under key, keeping the position of an existing key.
func (v *Values) Set(key string, val Value) {
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = val
}

// Has reports whether key is present.
func (v *Values) Has(key string) bool {
	_, ok := v.m[key]
	return ok
}

// Get returns the value under key.
func (v *Values) Get(key string) (Value, bool) {
	val, ok := v.m[key]
	return val, ok
}

// Keys returns the keys in insertion order.
func (v *Values) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of keys.
func (v *Values) Len() int { return len(v.keys) }

// Map returns an unordered copy of the tree.
func (v *Values) Map() map[string]Value {
	out := make(map[string]Value, len(v.m))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}

// MarshalJSON encodes the tree as a JSON object in key order.
func (v *Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(v.m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
