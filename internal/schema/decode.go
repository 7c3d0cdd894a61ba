package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every way a payload failed its contract.
type ValidationError struct {
	Contract string
	Issues   []string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid %s: %s", e.Contract, strings.Join(e.Issues, "; "))
}

// Decode validates raw against the contract type of out and decodes it.
// Nothing is coerced: missing properties, null in a non-nullable property,
// unknown properties, type mismatches, and failed `validate` rules all fail.
func Decode(raw []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("schema: decode target must be a non-nil pointer")
	}
	c, err := contractOf(rv.Type())
	if err != nil {
		return err
	}
	name := rv.Elem().Type().Name()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return &ValidationError{Contract: name, Issues: []string{"expected a JSON object"}}
	}

	var issues []string
	known := make(map[string]struct{}, len(c.properties))
	for _, p := range c.properties {
		known[p.name] = struct{}{}
		value, ok := fields[p.name]
		if !ok {
			issues = append(issues, fmt.Sprintf("%s: required", p.name))
			continue
		}
		if !p.nullable && bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			issues = append(issues, fmt.Sprintf("%s: must not be null", p.name))
		}
	}
	var unknown []string
	for key := range fields {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		issues = append(issues, fmt.Sprintf("%s: unknown property", key))
	}
	if len(issues) > 0 {
		return &ValidationError{Contract: name, Issues: issues}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ValidationError{Contract: name, Issues: []string{
				fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value),
			}}
		}
		return &ValidationError{Contract: name, Issues: []string{err.Error()}}
	}

	if err := validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				issues = append(issues, fmt.Sprintf("%s: failed %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return &ValidationError{Contract: name, Issues: issues}
		}
		return err
	}
	return nil
}

// ToMap re-encodes a decoded contract as string-keyed fields.
func ToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
