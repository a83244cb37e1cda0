package testutil_test

import (
	"testing"

	"github.com/dan-strohschein/syndrdb-aggregates/testutil"
)

func TestRowFactory_Build(t *testing.T) {
	f := testutil.NewRowFactory([]string{"id", "name", "city"}, testutil.WithField("city", "Lund"))

	row := f.Build(testutil.WithField("id", int64(1)))
	if len(row) != 3 {
		t.Fatalf("expected 3 values, got %d", len(row))
	}
	if row[0] != int64(1) || row[1] != nil || row[2] != "Lund" {
		t.Errorf("unexpected row %v", row)
	}
}

func TestRowFactory_RowOverridesDefaults(t *testing.T) {
	f := testutil.NewRowFactory([]string{"id", "city"}, testutil.WithField("city", "Lund"))

	row := f.Row(map[string]any{"city": "Malmö"})
	if row[1] != "Malmö" {
		t.Errorf("expected override, got %v", row[1])
	}
}

func TestSequenceID(t *testing.T) {
	if testutil.SequenceID() == testutil.SequenceID() {
		t.Error("expected unique ids")
	}
}

func TestOrderShape(t *testing.T) {
	order := testutil.Order(t)
	if len(order.Relations) != 3 {
		t.Errorf("expected 3 relations, got %d", len(order.Relations))
	}
}
