package codegen

import (
	"encoding/json"
	"testing"

	"github.com/dan-strohschein/syndrdb-aggregates/testutil"
)

func generate(t *testing.T, gen *JSONSchemaGenerator) map[string]any {
	t.Helper()

	result, err := gen.Generate(testutil.Order(t))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return parsed
}

func TestJSONSchemaGenerator_Root(t *testing.T) {
	parsed := generate(t, NewJSONSchemaGenerator())

	if parsed["title"] != "Order" || parsed["type"] != "object" {
		t.Errorf("unexpected root %v", parsed)
	}

	definitions := parsed["definitions"].(map[string]any)
	for _, name := range []string{"LineItem", "Note", "Attribute", "Address"} {
		if _, exists := definitions[name]; !exists {
			t.Errorf("expected %s definition to exist", name)
		}
	}

	required := parsed["required"].([]any)
	expected := []any{"id", "items", "attributes"}
	if len(required) != len(expected) {
		t.Fatalf("expected required %v, got %v", expected, required)
	}
	for i := range expected {
		if required[i] != expected[i] {
			t.Errorf("required[%d] = %v, want %v", i, required[i], expected[i])
		}
	}
}

func TestJSONSchemaGenerator_Relations(t *testing.T) {
	properties := generate(t, NewJSONSchemaGenerator())["properties"].(map[string]any)

	tests := []struct {
		relation string
		key      string
		expected string
	}{
		{"items", "type", "array"},
		{"attributes", "type", "object"},
	}

	for _, tt := range tests {
		t.Run(tt.relation, func(t *testing.T) {
			rel := properties[tt.relation].(map[string]any)
			if rel[tt.key] != tt.expected {
				t.Errorf("expected %s=%s, got %v", tt.key, tt.expected, rel[tt.key])
			}
		})
	}

	items := properties["items"].(map[string]any)["items"].(map[string]any)
	if items["$ref"] != "#/definitions/LineItem" {
		t.Errorf("unexpected items reference %v", items["$ref"])
	}

	shipping := properties["shipping"].(map[string]any)["anyOf"].([]any)
	if len(shipping) != 2 || shipping[0].(map[string]any)["$ref"] != "#/definitions/Address" {
		t.Errorf("unexpected shipping schema %v", shipping)
	}
}

func TestJSONSchemaGenerator_Properties(t *testing.T) {
	properties := generate(t, NewJSONSchemaGenerator())["properties"].(map[string]any)

	id := properties["id"].(map[string]any)
	if id["type"] != "integer" {
		t.Errorf("expected integer id, got %v", id)
	}

	tags := properties["tags"].(map[string]any)["anyOf"].([]any)
	if tags[0].(map[string]any)["type"] != "array" {
		t.Errorf("expected nullable array for tags, got %v", tags)
	}
}

func TestJSONSchemaGenerator_Strict(t *testing.T) {
	parsed := generate(t, &JSONSchemaGenerator{Strict: true})

	required := parsed["required"].([]any)
	if len(required) != 6 {
		t.Errorf("expected every property required, got %v", required)
	}
}
