// Package validator holds the JSON structure predicates checked by
// json_validator cases, keyed by case name.
package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrUnimplemented is the violation reported for case names without a
// registered predicate.
var ErrUnimplemented = errors.New("unimplemented validator")

// Predicate checks a decoded JSON value. It returns nil when the value
// satisfies it and the violation otherwise.
//
// Values are decoded with json.Decoder.UseNumber, so numbers arrive as
// json.Number.
type Predicate func(v any) error

// Unimplemented always fails with ErrUnimplemented.
func Unimplemented(any) error {
	return ErrUnimplemented
}

// Decode parses a JSON document the way predicates expect it.
func Decode(doc []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse the response json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse the response json: trailing data")
	}
	return v, nil
}

func object(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("value is not an object.")
	}
	return obj, nil
}

// HasKeys fails unless v is an object carrying every key.
func HasKeys(keys ...string) Predicate {
	return func(v any) error {
		obj, err := object(v)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if _, ok := obj[k]; !ok {
				return fmt.Errorf("json value doesn't contain the key `%s`", k)
			}
		}
		return nil
	}
}

// LacksKey fails if v is not an object or carries key.
func LacksKey(key string) Predicate {
	return func(v any) error {
		obj, err := object(v)
		if err != nil {
			return err
		}
		if _, ok := obj[key]; ok {
			return fmt.Errorf("json value should not contain the key `%s`", key)
		}
		return nil
	}
}

// KeyEqualsString fails unless obj[key] is the string want.
func KeyEqualsString(key, want string) Predicate {
	return func(v any) error {
		field, err := lookup(v, key)
		if err != nil {
			return err
		}
		got, ok := field.(string)
		if !ok {
			return fmt.Errorf("%s is not a string.", key)
		}
		if got != want {
			return fmt.Errorf("%s was not equal to %s", key, want)
		}
		return nil
	}
}

// KeyEqualsInt fails unless obj[key] is the integer want.
func KeyEqualsInt(key string, want int64) Predicate {
	return func(v any) error {
		field, err := lookup(v, key)
		if err != nil {
			return err
		}
		n, ok := field.(json.Number)
		if !ok {
			return fmt.Errorf("%s is not an integer.", key)
		}
		got, err := n.Int64()
		if err != nil {
			return fmt.Errorf("%s is not an integer.", key)
		}
		if got != want {
			return fmt.Errorf("%s was not equal to %d", key, want)
		}
		return nil
	}
}

// KeyIsNull fails unless obj[key] is present and null.
func KeyIsNull(key string) Predicate {
	return func(v any) error {
		field, err := lookup(v, key)
		if err != nil {
			return err
		}
		if field != nil {
			return fmt.Errorf("%s is not null", key)
		}
		return nil
	}
}

// EmptyObject fails unless v is an object without keys.
func EmptyObject() Predicate {
	return func(v any) error {
		obj, err := object(v)
		if err != nil {
			return err
		}
		if len(obj) != 0 {
			return errors.New("value should be an empty object.")
		}
		return nil
	}
}

func lookup(v any, key string) (any, error) {
	obj, err := object(v)
	if err != nil {
		return nil, err
	}
	field, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("json value should contain the key `%s`", key)
	}
	return field, nil
}
