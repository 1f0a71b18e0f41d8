package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Record is a decoded JSON object that keeps the key order of the source document.
// Nested objects decode as *Record, arrays as []any and numbers as json.Number.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord builds a record from alternating key/value arguments.
// It panics on an odd argument count or a non-string key; it is meant for literals.
func NewRecord(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("table.NewRecord: odd number of arguments")
	}
	r := &Record{values: make(map[string]any, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("table.NewRecord: key %v is not a string", kv[i]))
		}
		r.Set(key, kv[i+1])
	}
	return r
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

// Len returns the number of keys.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Set stores value under key, appending the key if it is new.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Without returns a shallow copy of r minus the given keys.
func (r *Record) Without(keys ...string) *Record {
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	out := &Record{values: make(map[string]any, r.Len())}
	for _, k := range r.Keys() {
		if _, skip := drop[k]; skip {
			continue
		}
		out.Set(k, r.values[k])
	}
	return out
}

// MarshalJSON writes the object with keys in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order at every depth.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// DecodeRecords reads a JSON document holding a list of objects.
// A bare object is treated as a one-element list and null yields no records.
func DecodeRecords(rd io.Reader) ([]*Record, error) {
	dec := json.NewDecoder(rd)
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	switch doc := v.(type) {
	case nil:
		return nil, nil
	case *Record:
		return []*Record{doc}, nil
	case []any:
		out := make([]*Record, 0, len(doc))
		for i, item := range doc {
			rec, ok := item.(*Record)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not an object", i, item)
			}
			out = append(out, rec)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected JSON list of objects, got %T", v)
	}
}

// ParseRecords is DecodeRecords over a string.
func ParseRecords(s string) ([]*Record, error) {
	return DecodeRecords(bytes.NewReader([]byte(s)))
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		return decodeObject(dec)
	case '[':
		list := []any{}
		for dec.More() {
			item, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// decodeObject reads the members of an object whose '{' was already consumed.
func decodeObject(dec *json.Decoder) (*Record, error) {
	r := &Record{values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		r.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return r, nil
}
