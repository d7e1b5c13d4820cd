package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ConfirmMap is the cnf claim: a JSON object that keeps its members in
// insertion order so a parsed token re-signs to the same claim layout.
// The zero value is an empty map ready to use.
type ConfirmMap struct {
	keys   []string
	values map[string]any
}

// NewConfirmMap returns an empty ConfirmMap.
func NewConfirmMap() *ConfirmMap {
	return &ConfirmMap{}
}

// Set stores value under key. Replacing an existing key keeps its position.
func (m *ConfirmMap) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *ConfirmMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *ConfirmMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of entries.
func (m *ConfirmMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Equal reports whether both maps hold the same entries in the same order.
func (m *ConfirmMap) Equal(other *ConfirmMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	// A nil map equals an empty one.
	if m.Len() == 0 {
		return true
	}
	for i, key := range m.keys {
		if other.keys[i] != key {
			return false
		}
		if !reflect.DeepEqual(m.values[key], other.values[key]) {
			return false
		}
	}
	return true
}

// MarshalJSON writes the entries in insertion order.
func (m *ConfirmMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal confirmation entry %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping its member order.
func (m *ConfirmMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("confirmation claim must be a JSON object")
	}

	*m = ConfirmMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected confirmation key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode confirmation entry %q: %w", key, err)
		}
		m.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
