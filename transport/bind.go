package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholder renders the positional marker for the 1-based argument position.
type Placeholder func(position int) string

// Dollar renders PostgreSQL style $n markers.
func Dollar(position int) string {
	return "$" + strconv.Itoa(position)
}

// Question renders ? markers.
func Question(int) string {
	return "?"
}

// List marks a parameter value that expands into a comma separated
// placeholder list, as used by IN (...) predicates.
type List []any

// In builds a List parameter.
func In(values ...any) List {
	return List(values)
}

// Bound is a statement with positional arguments.
type Bound struct {
	SQL  string
	Args []any
}

// Expand rewrites :name parameters into positional placeholders. Quoted
// strings, quoted identifiers and :: casts are left untouched. A name used
// more than once binds the same position when the placeholder style numbers
// its markers.
func Expand(sql string, params Params, placeholder Placeholder) (Bound, error) {
	if placeholder == nil {
		placeholder = Question
	}

	numbered := placeholder(1) != placeholder(2)
	positions := make(map[string]string)

	var out strings.Builder
	out.Grow(len(sql) + 16)
	args := make([]any, 0, len(params))

	bind := func(name string) (string, error) {
		if marker, ok := positions[name]; ok && numbered {
			return marker, nil
		}
		value, ok := params[name]
		if !ok {
			return "", fmt.Errorf("missing value for parameter :%s", name)
		}

		var marker string
		if list, isList := value.(List); isList {
			if len(list) == 0 {
				return "", fmt.Errorf("parameter :%s is an empty list", name)
			}
			markers := make([]string, len(list))
			for i, v := range list {
				args = append(args, v)
				markers[i] = placeholder(len(args))
			}
			marker = strings.Join(markers, ", ")
		} else {
			args = append(args, value)
			marker = placeholder(len(args))
		}
		positions[name] = marker
		return marker, nil
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(sql, i, c)
			out.WriteString(sql[i:end])
			i = end - 1
		case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
			out.WriteString("::")
			i++
		case c == ':' && i+1 < len(sql) && isNameStart(sql[i+1]):
			j := i + 1
			for j < len(sql) && isNamePart(sql[j]) {
				j++
			}
			marker, err := bind(sql[i+1 : j])
			if err != nil {
				return Bound{}, err
			}
			out.WriteString(marker)
			i = j - 1
		default:
			out.WriteByte(c)
		}
	}

	return Bound{SQL: out.String(), Args: args}, nil
}

// skipQuoted returns the index just past the quoted section starting at i.
// Doubled quotes are escapes.
func skipQuoted(sql string, i int, quote byte) int {
	for j := i + 1; j < len(sql); j++ {
		if sql[j] != quote {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(sql)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// Returning appends a RETURNING clause for the key columns.
func Returning(sql string, keyColumns []string) string {
	if len(keyColumns) == 0 {
		return sql
	}
	return strings.TrimRight(sql, "; \n\t") + " RETURNING " + strings.Join(keyColumns, ", ")
}
