package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type meal struct {
	Description string   `json:"description"`
	Calories    float64  `json:"calories"`
	Notes       *string  `json:"notes" jsonschema:"nullable"`
	Tags        []string `json:"tags" validate:"dive,oneof=breakfast lunch dinner"`
}

func TestDecodeValid(t *testing.T) {
	var got meal
	err := Decode([]byte(`{"description":"salad","calories":320.5,"notes":null,"tags":["lunch"]}`), &got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Description != "salad" || got.Calories != 320.5 || got.Notes != nil {
		t.Fatalf("unexpected decode result: %#v", got)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		issue string
	}{
		{name: "not an object", raw: `[1,2]`, issue: "expected a JSON object"},
		{name: "null document", raw: `null`, issue: "expected a JSON object"},
		{name: "missing property", raw: `{"description":"x","calories":1,"tags":[]}`, issue: "notes: required"},
		{name: "null non-nullable", raw: `{"description":"x","calories":null,"notes":null,"tags":[]}`, issue: "calories: must not be null"},
		{name: "unknown property", raw: `{"description":"x","calories":1,"notes":null,"tags":[],"extra":true}`, issue: "extra: unknown property"},
		{name: "wrong type", raw: `{"description":"x","calories":"lots","notes":null,"tags":[]}`, issue: "calories"},
		{name: "failed rule", raw: `{"description":"x","calories":1,"notes":null,"tags":["brunch"]}`, issue: "oneof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got meal
			err := Decode([]byte(tt.raw), &got)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Contract != "meal" {
				t.Fatalf("expected contract name meal, got %q", vErr.Contract)
			}
			if !strings.Contains(vErr.Error(), tt.issue) {
				t.Fatalf("expected issue containing %q, got %q", tt.issue, vErr.Error())
			}
		})
	}
}

func TestDecodeRequiresPointer(t *testing.T) {
	if err := Decode([]byte(`{}`), meal{}); err == nil {
		t.Fatal("expected error for non-pointer target")
	}
}

func TestForProducesObjectSchema(t *testing.T) {
	format, err := For("meal", meal{})
	if err != nil {
		t.Fatalf("for: %v", err)
	}
	if format.Name != "meal" {
		t.Fatalf("expected name meal, got %q", format.Name)
	}

	var doc map[string]any
	if err := json.Unmarshal(format.Schema, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["type"] != "object" {
		t.Fatalf("expected object schema, got %v", doc["type"])
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties, got %#v", doc["properties"])
	}
	for _, name := range []string{"description", "calories", "notes", "tags"} {
		if _, ok := props[name]; !ok {
			t.Fatalf("expected property %q in schema", name)
		}
	}
}

func TestForUsesProviderSubset(t *testing.T) {
	format, err := For("meal", meal{})
	if err != nil {
		t.Fatalf("for: %v", err)
	}
	raw := string(format.Schema)
	if strings.Contains(raw, `"$schema"`) {
		t.Fatalf("expected no $schema keyword, got %s", raw)
	}
	if strings.Contains(raw, `"oneOf"`) {
		t.Fatalf("expected no oneOf, got %s", raw)
	}

	var doc struct {
		Properties map[string]struct {
			AnyOf []struct {
				Type string `json:"type"`
			} `json:"anyOf"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(format.Schema, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	notes := doc.Properties["notes"].AnyOf
	if len(notes) != 2 || notes[0].Type != "string" || notes[1].Type != "null" {
		t.Fatalf("expected notes as string|null anyOf, got %#v", notes)
	}
}

func TestToMap(t *testing.T) {
	notes := "light"
	got, err := ToMap(meal{Description: "salad", Calories: 10, Notes: &notes, Tags: []string{}})
	if err != nil {
		t.Fatalf("to map: %v", err)
	}
	if got["description"] != "salad" || got["calories"] != float64(10) || got["notes"] != "light" {
		t.Fatalf("unexpected map: %#v", got)
	}
}
