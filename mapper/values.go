// Package mapper turns the raw structures produced by the aggregate engine
// into converted values: generic documents or typed structs.
package mapper

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/dan-strohschein/syndrdb-aggregates/schema"
)

// ValueMapper handles type coercion of column values.
type ValueMapper struct{}

// NewValueMapper creates a new value mapper.
func NewValueMapper() *ValueMapper {
	return &ValueMapper{}
}

// Coerce maps a column value onto the Go representation of fieldType. Nil
// stays nil.
func (m *ValueMapper) Coerce(value any, fieldType schema.FieldType) (any, error) {
	value, err := unwrapValuer(value)
	if err != nil || value == nil {
		return nil, err
	}

	switch fieldType {
	case schema.STRING, schema.TEXT:
		return m.ToString(value), nil
	case schema.INT:
		return m.ToInt(value)
	case schema.FLOAT:
		return m.ToFloat(value)
	case schema.BOOLEAN:
		return m.ToBool(value)
	case schema.DATETIME:
		return m.ToDateTime(value)
	case schema.DECIMAL:
		return m.ToDecimal(value)
	case schema.JSON:
		if b, ok := value.([]byte); ok {
			return string(b), nil
		}
		return value, nil
	default:
		return value, nil
	}
}

// unwrapValuer resolves driver wrapper types such as pgtype values.
func unwrapValuer(value any) (any, error) {
	if _, isTime := value.(time.Time); isTime {
		return value, nil
	}
	if v, ok := value.(driver.Valuer); ok {
		return v.Value()
	}
	return value, nil
}

// ToString converts any value to a string.
func (m *ValueMapper) ToString(value any) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToInt converts a value to an integer.
func (m *ValueMapper) ToInt(value any) (int64, error) {
	if value == nil {
		return 0, fmt.Errorf("cannot convert nil to int")
	}

	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > 1<<63-1 {
			return 0, fmt.Errorf("cannot convert %d to int: overflow", v)
		}
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case *big.Int:
		if !v.IsInt64() {
			return 0, fmt.Errorf("cannot convert %s to int: overflow", v)
		}
		return v.Int64(), nil
	case []byte:
		return m.ToInt(string(v))
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert '%s' to int: %w", v, err)
		}
		return i, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// ToFloat converts a value to a float.
func (m *ValueMapper) ToFloat(value any) (float64, error) {
	if value == nil {
		return 0, fmt.Errorf("cannot convert nil to float")
	}

	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		i, err := m.ToInt(v)
		return float64(i), err
	case []byte:
		return m.ToFloat(string(v))
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert '%s' to float: %w", v, err)
		}
		return f, nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float", value)
	}
}

// ToBool converts a value to a boolean.
func (m *ValueMapper) ToBool(value any) (bool, error) {
	if value == nil {
		return false, nil
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		i, err := m.ToInt(v)
		return i != 0, err
	case float32:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []byte:
		return m.ToBool(string(v))
	case string:
		switch v {
		case "true", "t", "1", "yes", "y", "on":
			return true, nil
		case "false", "f", "0", "no", "n", "off", "":
			return false, nil
		default:
			return false, fmt.Errorf("cannot convert '%s' to boolean", v)
		}
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}

var dateTimeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ToDateTime converts a value to a time.Time.
func (m *ValueMapper) ToDateTime(value any) (time.Time, error) {
	if value == nil {
		return time.Time{}, fmt.Errorf("cannot convert nil to datetime")
	}

	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return m.ToDateTime(string(v))
	case string:
		for _, format := range dateTimeFormats {
			if t, err := time.Parse(format, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse '%s' as datetime", v)
	case int, int32, int64:
		// unix seconds
		ts, _ := m.ToInt(v)
		return time.Unix(ts, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", value)
	}
}

// ToDecimal converts a value to its exact decimal string.
func (m *ValueMapper) ToDecimal(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("cannot convert nil to decimal")
	case string:
		if _, ok := new(big.Rat).SetString(v); !ok {
			return "", fmt.Errorf("cannot convert '%s' to decimal", v)
		}
		return v, nil
	case []byte:
		return m.ToDecimal(string(v))
	case *big.Rat:
		return v.FloatString(10), nil
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64:
		return m.ToString(v), nil
	default:
		return "", fmt.Errorf("cannot convert %T to decimal", value)
	}
}
