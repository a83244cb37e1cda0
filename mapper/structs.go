package mapper

import (
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/dialect"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
)

// DefaultTagName is the struct tag StructConverter matches property and
// relation names against.
const DefaultTagName = "db"

// StructConverter decodes entities into values of type T. Fields are matched
// by the db tag, falling back to a case-insensitive field name match. Convert
// returns *T.
type StructConverter[T any] struct {
	documents *DocumentConverter
	tagName   string
}

// NewStructConverter creates a converter for T.
func NewStructConverter[T any](arrays dialect.ArrayColumns) *StructConverter[T] {
	return &StructConverter[T]{documents: NewDocumentConverter(arrays), tagName: DefaultTagName}
}

// WithTagName switches the struct tag used for field matching.
func (c *StructConverter[T]) WithTagName(tag string) *StructConverter[T] {
	c.tagName = tag
	return c
}

// Convert implements Converter.
func (c *StructConverter[T]) Convert(raw RawEntity, shape *schema.Entity) (any, error) {
	doc, err := c.documents.document(raw, shape)
	if err != nil {
		return nil, err
	}

	out := new(T)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          c.tagName,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return nil, dataaccess.ErrConversion(shape.Name, err)
	}

	if err := decoder.Decode(map[string]any(doc)); err != nil {
		return nil, dataaccess.ErrConversion(shape.Name, err)
	}
	return out, nil
}
