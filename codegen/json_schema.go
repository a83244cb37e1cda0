// Package codegen describes aggregate documents for other tools.
package codegen

import (
	"encoding/json"
	"fmt"

	"github.com/dan-strohschein/syndrdb-aggregates/schema"
)

const draft = "http://json-schema.org/draft-07/schema#"

// JSONSchemaGenerator generates the JSON Schema of the documents produced by
// the default document converter.
type JSONSchemaGenerator struct {
	// Strict marks every property but the id as required. Values stay
	// nullable since any column may be NULL.
	Strict bool
}

// NewJSONSchemaGenerator creates a new JSON Schema generator.
func NewJSONSchemaGenerator() *JSONSchemaGenerator {
	return &JSONSchemaGenerator{}
}

// Generate returns the schema of the aggregate rooted at root. Every entity
// the root owns becomes a definition referenced by $ref.
func (g *JSONSchemaGenerator) Generate(root *schema.Entity) (string, error) {
	definitions := make(map[string]any)
	root.Walk(func(path schema.Path, rel *schema.Relation) {
		if _, done := definitions[rel.Target.Name]; !done {
			definitions[rel.Target.Name] = g.entitySchema(rel.Target)
		}
	})

	rootSchema := g.entitySchema(root)
	rootSchema["$schema"] = draft
	rootSchema["title"] = root.Name
	if len(definitions) > 0 {
		rootSchema["definitions"] = definitions
	}

	data, err := json.MarshalIndent(rootSchema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return string(data), nil
}

func (g *JSONSchemaGenerator) entitySchema(e *schema.Entity) map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)

	if e.ID.Name != "" {
		properties[e.ID.Name] = g.propertySchema(e.ID, false)
		required = append(required, e.ID.Name)
	}

	for _, p := range e.Properties {
		properties[p.Name] = g.propertySchema(p, true)
		if g.Strict {
			required = append(required, p.Name)
		}
	}

	for i := range e.Relations {
		rel := &e.Relations[i]
		properties[rel.Name] = relationSchema(rel)
		// lists and maps are always present, possibly empty
		if rel.Kind != schema.SINGLE || g.Strict {
			required = append(required, rel.Name)
		}
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func (g *JSONSchemaGenerator) propertySchema(p schema.Property, nullable bool) map[string]any {
	fieldSchema := scalarSchema(p.Type)
	if p.Array {
		// nested arrays keep the element schema at every depth
		fieldSchema = map[string]any{
			"type":  "array",
			"items": map[string]any{"anyOf": []any{fieldSchema, map[string]any{"type": "array"}}},
		}
	}

	if nullable {
		return map[string]any{"anyOf": []any{fieldSchema, map[string]any{"type": "null"}}}
	}
	return fieldSchema
}

// scalarSchema maps a field type onto the JSON representation of its
// coerced value.
func scalarSchema(t schema.FieldType) map[string]any {
	switch t {
	case schema.STRING, schema.TEXT, schema.DECIMAL:
		return map[string]any{"type": "string"}
	case schema.INT:
		return map[string]any{"type": "integer"}
	case schema.FLOAT:
		return map[string]any{"type": "number"}
	case schema.BOOLEAN:
		return map[string]any{"type": "boolean"}
	case schema.DATETIME:
		return map[string]any{"type": "string", "format": "date-time"}
	default:
		return map[string]any{}
	}
}

func relationSchema(rel *schema.Relation) map[string]any {
	ref := map[string]any{"$ref": "#/definitions/" + rel.Target.Name}

	switch rel.Kind {
	case schema.LIST:
		return map[string]any{"type": "array", "items": ref}
	case schema.MAP:
		return map[string]any{"type": "object", "additionalProperties": ref}
	default:
		return map[string]any{"anyOf": []any{ref, map[string]any{"type": "null"}}}
	}
}
