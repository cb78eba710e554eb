package validator

import (
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadCUE reads extra predicates from a CUE file. Every top-level field is a
// case name whose value constrains the JSON output of that case:
//
//	"Recommended.Proto3.JsonInput.Int32FieldQuotedValue.Validator": {
//		optionalInt32!: 1
//	}
//
// A document passes when it unifies with the constraint into a concrete
// value. Required keys are written with "!".
func LoadCUE(path string) (map[string]Predicate, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read validators: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}

	iter, err := value.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating validators: %w", err)
	}

	preds := make(map[string]Predicate)
	for iter.Next() {
		preds[iter.Label()] = cuePredicate(ctx, iter.Value())
	}
	return preds, nil
}

func cuePredicate(ctx *cue.Context, constraint cue.Value) Predicate {
	return func(v any) error {
		doc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("re-encoding json value: %w", err)
		}
		value := ctx.CompileBytes(doc)
		if err := value.Err(); err != nil {
			return fmt.Errorf("json value is not valid CUE: %w", err)
		}
		if err := constraint.Unify(value).Validate(cue.Concrete(true)); err != nil {
			return err
		}
		return nil
	}
}
