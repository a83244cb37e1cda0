package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// parseValue reads a command line value as an integer, float or boolean
// when it parses as one, and as a string otherwise.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// parseParams reads name=value pairs.
func parseParams(raw []string) (transport.Params, error) {
	params := make(transport.Params, len(raw))
	for _, pair := range raw {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q is not name=value", pair)
		}
		params[name] = parseValue(value)
	}
	return params, nil
}

func parseIDs(raw []string) []any {
	ids := make([]any, len(raw))
	for i, s := range raw {
		ids[i] = parseValue(s)
	}
	return ids
}

// readBatch reads a YAML or JSON list of parameter sets.
func readBatch(r io.Reader) ([]transport.Params, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := yaml.Unmarshal(buf, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse parameter sets: %w", err)
	}

	batch := make([]transport.Params, len(rows))
	for i, row := range rows {
		if row == nil {
			return nil, fmt.Errorf("parameter set %d is empty", i)
		}
		batch[i] = transport.Params(row)
	}
	return batch, nil
}
