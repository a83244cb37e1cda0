package aggregate

import (
	"context"
	"fmt"
	"testing"

	"github.com/dan-strohschein/syndrdb-aggregates/testutil"
	"github.com/dan-strohschein/syndrdb-aggregates/transport/mock"
)

// cartesianRows builds the joined rows of orders with items and attributes
// the way the database returns them: every item repeated per attribute.
func cartesianRows(orders, items, attrs int) [][]any {
	rows := make([][]any, 0, orders*items*attrs)
	for o := 1; o <= orders; o++ {
		for i := 0; i < items; i++ {
			for a := 0; a < attrs; a++ {
				id := int64(o*1000 + i)
				rows = append(rows, orderRow(int64(o), merge(
					item(id, fmt.Sprintf("SKU-%d", id), int64(i+1)),
					attr(fmt.Sprintf("k%d", a), "v"),
					ship,
				)))
			}
		}
	}
	return rows
}

// BenchmarkFindAllAssembly measures assembly of 100 orders from 1000 joined rows
func BenchmarkFindAllAssembly(b *testing.B) {
	shape := testutil.Order(b)
	rows := cartesianRows(100, 5, 2)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		m := mock.NewMockTransport().
			WithRows("FROM purchase_order", testutil.OrderColumns, rows...).
			WithRows("FROM item_note", testutil.NoteColumns)

		results, err := newReader(m).FindAll(context.Background(), shape)
		if err != nil {
			b.Fatalf("FindAll failed: %v", err)
		}
		if len(results) != 100 {
			b.Fatalf("expected 100 orders, got %d", len(results))
		}
	}
}

// BenchmarkFindByIDWide measures one aggregate with many children
func BenchmarkFindByIDWide(b *testing.B) {
	shape := testutil.Order(b)
	rows := cartesianRows(1, 50, 4)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		m := mock.NewMockTransport().
			WithRows("FROM purchase_order", testutil.OrderColumns, rows...).
			WithRows("FROM item_note", testutil.NoteColumns)

		_, found, err := newReader(m).FindByID(context.Background(), 1, shape)
		if err != nil {
			b.Fatalf("FindByID failed: %v", err)
		}
		if !found {
			b.Fatal("expected aggregate")
		}
	}
}
