package mapper

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/dialect"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
)

// RawEntity is one assembled entity before conversion. Property values are
// keyed by property name. Relations are keyed by relation name and hold
// []RawEntity (list), map[any]RawEntity (map) or RawEntity / nil (single).
type RawEntity map[string]any

// KeyField holds the map key of an entity resolved for a map relation.
// Converters ignore it.
const KeyField = "$key"

// Converter turns a raw entity of shape into the caller's representation.
type Converter interface {
	Convert(raw RawEntity, shape *schema.Entity) (any, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(raw RawEntity, shape *schema.Entity) (any, error)

// Convert calls f.
func (f ConverterFunc) Convert(raw RawEntity, shape *schema.Entity) (any, error) {
	return f(raw, shape)
}

// Document is the generic converted form of an entity.
type Document map[string]any

// DocumentConverter converts raw entities into Documents. Property values
// are coerced to their declared field types; map relations become
// map[string]any keyed by the string form of the key.
type DocumentConverter struct {
	values *ValueMapper
	arrays dialect.ArrayColumns
}

// NewDocumentConverter creates a converter that reads array properties
// according to arrays.
func NewDocumentConverter(arrays dialect.ArrayColumns) *DocumentConverter {
	return &DocumentConverter{values: NewValueMapper(), arrays: arrays}
}

// Convert implements Converter. The result is a Document.
func (c *DocumentConverter) Convert(raw RawEntity, shape *schema.Entity) (any, error) {
	return c.document(raw, shape)
}

func (c *DocumentConverter) document(raw RawEntity, shape *schema.Entity) (Document, error) {
	if raw == nil {
		return nil, nil
	}

	doc := make(Document, len(raw))

	props := shape.Properties
	if shape.ID.Name != "" {
		props = append([]schema.Property{shape.ID}, props...)
	}

	for _, p := range props {
		value, err := c.property(raw[p.Name], p)
		if err != nil {
			return nil, err
		}
		doc[p.Name] = value
	}

	for i := range shape.Relations {
		rel := &shape.Relations[i]
		value, err := c.relation(raw[rel.Name], rel)
		if err != nil {
			return nil, err
		}
		doc[rel.Name] = value
	}

	return doc, nil
}

func (c *DocumentConverter) property(value any, p schema.Property) (any, error) {
	if !p.Array {
		v, err := c.values.Coerce(value, p.Type)
		if err != nil {
			return nil, dataaccess.ErrConversion(p.Name, err)
		}
		return v, nil
	}

	if c.arrays == nil || !c.arrays.IsSupported() {
		return nil, dataaccess.ErrUnsupportedOperation("read array property "+p.Name, "dialect has no array columns")
	}
	if value == nil {
		return nil, nil
	}

	v, err := c.array(reflect.ValueOf(value), p)
	if err != nil {
		return nil, dataaccess.ErrConversion(p.Name, err)
	}
	return v, nil
}

// array converts a slice of any nesting depth into []any, coercing the
// leaf elements.
func (c *DocumentConverter) array(v reflect.Value, p schema.Property) (any, error) {
	elem := c.arrays.ArrayType(v.Type())
	if elem == v.Type() {
		return nil, fmt.Errorf("expected an array value, got %s", v.Type())
	}

	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		for item.Kind() == reflect.Interface && !item.IsNil() {
			item = item.Elem()
		}

		switch {
		case !item.IsValid() || (item.Kind() == reflect.Interface && item.IsNil()):
			out[i] = nil
		case c.arrays.ArrayType(item.Type()) != item.Type():
			nested, err := c.array(item, p)
			if err != nil {
				return nil, err
			}
			out[i] = nested
		default:
			coerced, err := c.values.Coerce(item.Interface(), p.Type)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = coerced
		}
	}
	return out, nil
}

func (c *DocumentConverter) relation(value any, rel *schema.Relation) (any, error) {
	switch rel.Kind {
	case schema.LIST:
		children, _ := value.([]RawEntity)
		out := make([]any, 0, len(children))
		for _, child := range children {
			doc, err := c.document(child, rel.Target)
			if err != nil {
				return nil, err
			}
			out = append(out, doc)
		}
		return out, nil

	case schema.MAP:
		children, _ := value.(map[any]RawEntity)
		out := make(map[string]any, len(children))
		for _, key := range sortedKeys(children) {
			doc, err := c.document(children[key], rel.Target)
			if err != nil {
				return nil, err
			}
			out[c.values.ToString(key)] = doc
		}
		return out, nil

	default:
		child, _ := value.(RawEntity)
		if child == nil {
			return nil, nil
		}
		return c.document(child, rel.Target)
	}
}

// sortedKeys orders map keys by their string form so conversion is
// deterministic.
func sortedKeys(m map[any]RawEntity) []any {
	keys := make([]any, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
	return keys
}
