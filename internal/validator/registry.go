package validator

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps exact case names to predicates. A Registry never changes
// after construction.
type Registry struct {
	preds map[string]Predicate
}

// NewRegistry copies entries into a new Registry.
func NewRegistry(entries map[string]Predicate) *Registry {
	preds := make(map[string]Predicate, len(entries))
	for name, p := range entries {
		preds[name] = p
	}
	return &Registry{preds: preds}
}

// Default returns the builtin registry. It is built on first use and shared.
func Default() *Registry {
	return defaultRegistry()
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(builtins())
})

// Lookup returns the predicate registered under name, or Unimplemented.
func (r *Registry) Lookup(name string) Predicate {
	if p, ok := r.preds[name]; ok {
		return p
	}
	return Unimplemented
}

// Has reports whether name has a registered predicate.
func (r *Registry) Has(name string) bool {
	_, ok := r.preds[name]
	return ok
}

// Len returns the number of registered predicates.
func (r *Registry) Len() int {
	return len(r.preds)
}

// Names lists the registered case names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.preds))
	for name := range r.preds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a new Registry holding r's predicates plus extra. Entries in
// extra may not replace existing ones.
func (r *Registry) With(extra map[string]Predicate) (*Registry, error) {
	merged := make(map[string]Predicate, len(r.preds)+len(extra))
	for name, p := range r.preds {
		merged[name] = p
	}
	for name, p := range extra {
		if _, exists := merged[name]; exists {
			return nil, fmt.Errorf("validator %q is already registered", name)
		}
		merged[name] = p
	}
	return &Registry{preds: merged}, nil
}

// Validate decodes doc and checks it against the predicate for name.
func (r *Registry) Validate(name string, doc []byte) error {
	v, err := Decode(doc)
	if err != nil {
		return err
	}
	return r.Lookup(name)(v)
}

func builtins() map[string]Predicate {
	const (
		duration  = "optionalDuration"
		timestamp = "optionalTimestamp"
		epoch     = "1970-01-01T00:00:00Z"
	)

	return map[string]Predicate{
		"Required.Proto3.JsonInput.FieldNameInLowerCamelCase.Validator": HasKeys(
			"fieldname1", "fieldName2", "FieldName3", "fieldName4"),
		"Required.Proto3.JsonInput.FieldNameWithNumbers.Validator": HasKeys(
			"field0name5", "field0Name6"),
		"Required.Proto3.JsonInput.FieldNameWithMixedCases.Validator": HasKeys(
			"fieldName7", "FieldName8", "fieldName9", "FieldName10", "FIELDNAME11", "FIELDName12"),
		"Recommended.Proto3.JsonInput.FieldNameWithDoubleUnderscores.Validator": HasKeys(
			"FieldName13", "FieldName14", "fieldName15", "fieldName16", "fieldName17", "FieldName18"),

		"Required.Proto3.JsonInput.SkipsDefaultPrimitive.Validator": LacksKey("FieldName13"),

		"Recommended.Proto3.JsonInput.Int64FieldBeString.Validator":  KeyEqualsString("optionalInt64", "1"),
		"Recommended.Proto3.JsonInput.Uint64FieldBeString.Validator": KeyEqualsString("optionalUint64", "1"),
		"Required.Proto3.JsonInput.EnumFieldUnknownValue.Validator":  KeyEqualsInt("optionalNestedEnum", 123),

		"Recommended.Proto3.JsonInput.DurationHasZeroFractionalDigit.Validator": KeyEqualsString(duration, "1s"),
		"Recommended.Proto3.JsonInput.DurationHas3FractionalDigits.Validator":   KeyEqualsString(duration, "1.010s"),
		"Recommended.Proto3.JsonInput.DurationHas6FractionalDigits.Validator":   KeyEqualsString(duration, "1.000010s"),
		"Recommended.Proto3.JsonInput.DurationHas9FractionalDigits.Validator":   KeyEqualsString(duration, "1.000000010s"),

		"Recommended.Proto3.JsonInput.TimestampZeroNormalized.Validator":         KeyEqualsString(timestamp, epoch),
		"Recommended.Proto3.JsonInput.TimestampHasZeroFractionalDigit.Validator": KeyEqualsString(timestamp, epoch),
		"Recommended.Proto3.JsonInput.TimestampHas3FractionalDigits.Validator":   KeyEqualsString(timestamp, "1970-01-01T00:00:00.010Z"),
		"Recommended.Proto3.JsonInput.TimestampHas6FractionalDigits.Validator":   KeyEqualsString(timestamp, "1970-01-01T00:00:00.000010Z"),
		"Recommended.Proto3.JsonInput.TimestampHas9FractionalDigits.Validator":   KeyEqualsString(timestamp, "1970-01-01T00:00:00.000000010Z"),

		"Recommended.Proto3.JsonInput.NullValueInOtherOneofOldFormat.Validator": KeyEqualsString("oneofNullValue", "NULL_VALUE"),
		"Recommended.Proto3.JsonInput.NullValueInOtherOneofNewFormat.Validator": KeyIsNull("oneofNullValue"),
		"Recommended.Proto3.JsonInput.NullValueInNormalMessage.Validator":       EmptyObject(),

		"Required.Proto2.JsonInput.StoresDefaultPrimitive.Validator": KeyEqualsInt("FieldName13", 0),
	}
}
