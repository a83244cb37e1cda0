package schema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash"
)

// PartKind says what an identifier part stands for.
type PartKind int

const (
	// PartID is the id value of an intermediate entity.
	PartID PartKind = iota
	// PartKey is the map key of an intermediate entity.
	PartKey
	// PartIndex is the list index of an intermediate entity.
	PartIndex
)

// IdentifierPart addresses one nesting level below the root.
type IdentifierPart struct {
	Path  Path
	Value any
	Kind  PartKind
}

// Identifier is the composite key addressing one entity instance inside an
// aggregate: the root id followed by one part per nesting level. Values are
// immutable; every With* method returns a copy.
type Identifier struct {
	root  any
	parts []IdentifierPart
}

// RootIdentifier identifies an aggregate root.
func RootIdentifier(id any) Identifier {
	return Identifier{root: id}
}

// WithPart returns a copy of id extended by one nesting level.
func (id Identifier) WithPart(path Path, value any, kind PartKind) Identifier {
	parts := make([]IdentifierPart, len(id.parts), len(id.parts)+1)
	copy(parts, id.parts)
	parts = append(parts, IdentifierPart{Path: path, Value: value, Kind: kind})
	return Identifier{root: id.root, parts: parts}
}

// Root returns the root id.
func (id Identifier) Root() any {
	return id.root
}

// Parts returns a copy of the nesting parts.
func (id Identifier) Parts() []IdentifierPart {
	parts := make([]IdentifierPart, len(id.parts))
	copy(parts, id.parts)
	return parts
}

// Depth is the number of parts below the root.
func (id Identifier) Depth() int {
	return len(id.parts)
}

// Last returns the value of the deepest level: the last part, or the root id.
func (id Identifier) Last() any {
	if len(id.parts) == 0 {
		return id.root
	}
	return id.parts[len(id.parts)-1].Value
}

// Equal compares two identifiers structurally. Numeric values of different
// Go widths compare equal when they denote the same number.
func (id Identifier) Equal(other Identifier) bool {
	if len(id.parts) != len(other.parts) {
		return false
	}
	if canonical(id.root) != canonical(other.root) {
		return false
	}
	for i := range id.parts {
		a, b := id.parts[i], other.parts[i]
		if a.Path != b.Path || a.Kind != b.Kind || canonical(a.Value) != canonical(b.Value) {
			return false
		}
	}
	return true
}

// Hash returns a 64-bit fingerprint of id. Equal identifiers have equal
// hashes; callers must still confirm with Equal.
func (id Identifier) Hash() uint64 {
	h := xxhash.New()
	h.Write([]byte(canonical(id.root)))
	for _, part := range id.parts {
		h.Write([]byte{0})
		h.Write([]byte(part.Path))
		h.Write([]byte{byte(part.Kind)})
		h.Write([]byte(canonical(part.Value)))
	}
	return h.Sum64()
}

func (id Identifier) String() string {
	var sb strings.Builder
	sb.WriteString(canonical(id.root))
	for _, part := range id.parts {
		sb.WriteString("/")
		sb.WriteString(string(part.Path))
		sb.WriteString("=")
		sb.WriteString(canonical(part.Value))
	}
	return sb.String()
}

// canonical renders a driver value so that equal values of different Go
// representations (int32/int64, []byte/string) encode identically.
func canonical(v any) string {
	switch val := v.(type) {
	case nil:
		return "n:"
	case string:
		return "s:" + val
	case []byte:
		return "s:" + string(val)
	case bool:
		return "b:" + strconv.FormatBool(val)
	case time.Time:
		return "t:" + val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return "x:" + val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "i:" + strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return "i:" + strconv.FormatInt(int64(u), 10)
		}
		return "u:" + strconv.FormatUint(u, 10)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
			return "i:" + strconv.FormatInt(int64(f), 10)
		}
		return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
	}

	return fmt.Sprintf("v:%T:%v", v, v)
}
