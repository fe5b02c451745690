// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package merge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Scalar
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Scalar:
		return "scalar"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind Kind

	// scalar holds a string, json.Number, or bool.
	scalar any

	items []Value

	keys   []string
	fields map[string]Value
}

// NullValue returns the null Value.
func NullValue() Value { return Value{} }

// String returns a string scalar.
func String(s string) Value { return Value{kind: Scalar, scalar: s} }

// Number returns a numeric scalar.
func Number(n json.Number) Value { return Value{kind: Scalar, scalar: n} }

// Bool returns a boolean scalar.
func Bool(b bool) Value { return Value{kind: Scalar, scalar: b} }

// List returns a sequence of items.
func List(items ...Value) Value {
	return Value{kind: Sequence, items: append([]Value(nil), items...)}
}

// Field is one key/value pair of a mapping under construction.
type Field struct {
	Key   string
	Value Value
}

// Object returns a mapping with fields in the given order. A repeated
// key keeps its first position and its last value.
func Object(fields ...Field) Value {
	v := Value{kind: Mapping, fields: make(map[string]Value, len(fields))}
	for _, field := range fields {
		if _, seen := v.fields[field.Key]; !seen {
			v.keys = append(v.keys, field.Key)
		}
		v.fields[field.Key] = field.Value
	}
	return v
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == Null }

// Str returns the string held by a string scalar.
func (v Value) Str() (string, bool) {
	s, ok := v.scalar.(string)
	return s, ok && v.kind == Scalar
}

// Items returns the elements of a sequence. The slice must not be
// modified.
func (v Value) Items() []Value { return v.items }

// Keys returns the keys of a mapping in document order. The slice must
// not be modified.
func (v Value) Keys() []string { return v.keys }

// Get returns the value stored under key in a mapping.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Mapping {
		return Value{}, false
	}
	field, ok := v.fields[key]
	return field, ok
}

// With returns a copy of mapping v with key set to field. Setting a key
// that already exists keeps its position. With on a non-mapping
// returns a single-key mapping.
func (v Value) With(key string, field Value) Value {
	result := Value{kind: Mapping, fields: make(map[string]Value, len(v.fields)+1)}
	if v.kind == Mapping {
		result.keys = append(make([]string, 0, len(v.keys)+1), v.keys...)
		for k, f := range v.fields {
			result.fields[k] = f
		}
	}
	if _, exists := result.fields[key]; !exists {
		result.keys = append(result.keys, key)
	}
	result.fields[key] = field
	return result
}

// Parse decodes one JSON document into a Value.
func Parse(data []byte) (Value, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	v, err := decodeValue(decoder)
	if err != nil {
		return Value{}, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("trailing data after JSON document")
	}
	return v, nil
}

func decodeValue(decoder *json.Decoder) (Value, error) {
	token, err := decoder.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := token.(type) {
	case nil:
		return Value{}, nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case json.Delim:
		switch t {
		case '[':
			v := Value{kind: Sequence, items: []Value{}}
			for decoder.More() {
				item, err := decodeValue(decoder)
				if err != nil {
					return Value{}, err
				}
				v.items = append(v.items, item)
			}
			if _, err := decoder.Token(); err != nil {
				return Value{}, err
			}
			return v, nil
		case '{':
			v := Value{kind: Mapping, fields: make(map[string]Value)}
			for decoder.More() {
				keyToken, err := decoder.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyToken.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T, not string", keyToken)
				}
				field, err := decodeValue(decoder)
				if err != nil {
					return Value{}, err
				}
				if _, seen := v.fields[key]; !seen {
					v.keys = append(v.keys, key)
				}
				v.fields[key] = field
			}
			if _, err := decoder.Token(); err != nil {
				return Value{}, err
			}
			return v, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", token)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON implements json.Marshaler. Mapping keys are written in
// document order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	if err := v.encode(&buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (v Value) encode(buffer *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buffer.WriteString("null")
	case Scalar:
		if err := encodeScalar(buffer, v.scalar); err != nil {
			return err
		}
	case Sequence:
		buffer.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buffer.WriteByte(',')
			}
			if err := item.encode(buffer); err != nil {
				return err
			}
		}
		buffer.WriteByte(']')
	case Mapping:
		buffer.WriteByte('{')
		for i, key := range v.keys {
			if i > 0 {
				buffer.WriteByte(',')
			}
			if err := encodeScalar(buffer, key); err != nil {
				return err
			}
			buffer.WriteByte(':')
			if err := v.fields[key].encode(buffer); err != nil {
				return err
			}
		}
		buffer.WriteByte('}')
	}
	return nil
}

// encodeScalar writes scalar without escaping <, > and &, which appear
// literally in JVM arguments and rule values.
func encodeScalar(buffer *bytes.Buffer, scalar any) error {
	var encoded bytes.Buffer
	encoder := json.NewEncoder(&encoded)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(scalar); err != nil {
		return err
	}
	buffer.Write(bytes.TrimSuffix(encoded.Bytes(), []byte("\n")))
	return nil
}

// Decode converts v into a Go value through its JSON encoding, for
// reading a typed view of a merged document.
func (v Value) Decode(target any) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
