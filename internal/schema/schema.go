// Package schema turns Go contract types into JSON Schema response formats and
// validates model output against them.
//
// A contract is a struct whose JSON properties are all required. Pointer
// fields are nullable and must carry the `jsonschema:"nullable"` tag so the
// generated schema advertises null as a valid value. Additional rules are
// expressed with `validate` tags.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// Format is a named response format sent to the model.
type Format struct {
	Name   string
	Schema json.RawMessage
}

// property describes one top-level JSON property of a contract.
type property struct {
	name     string
	nullable bool
}

type contract struct {
	properties []property
	schema     json.RawMessage
}

var (
	contracts sync.Map // reflect.Type -> *contract
	validate  = validator.New(validator.WithRequiredStructEnabled())
)

// For returns the response format for the contract type of v.
func For(name string, v any) (Format, error) {
	c, err := contractOf(reflect.TypeOf(v))
	if err != nil {
		return Format{}, err
	}
	return Format{Name: name, Schema: c.schema}, nil
}

func contractOf(t reflect.Type) (*contract, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: contract must be a struct, got %v", t)
	}
	if cached, ok := contracts.Load(t); ok {
		return cached.(*contract), nil
	}

	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	reflected := r.ReflectFromType(t)
	reflected.Version = ""
	preferAnyOf(reflected)
	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("schema: marshal %s: %w", t.Name(), err)
	}

	c := &contract{schema: raw}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonName(field)
		if name == "-" {
			continue
		}
		c.properties = append(c.properties, property{
			name:     name,
			nullable: field.Type.Kind() == reflect.Pointer,
		})
	}

	actual, _ := contracts.LoadOrStore(t, c)
	return actual.(*contract), nil
}

// preferAnyOf rewrites the oneOf unions the reflector emits for nullable
// fields as anyOf, the only union structured-output providers accept.
func preferAnyOf(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	if len(s.OneOf) > 0 {
		s.AnyOf = append(s.AnyOf, s.OneOf...)
		s.OneOf = nil
	}
	for _, sub := range s.AnyOf {
		preferAnyOf(sub)
	}
	preferAnyOf(s.Items)
	preferAnyOf(s.AdditionalProperties)
	if s.Properties != nil {
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			preferAnyOf(pair.Value)
		}
	}
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}
