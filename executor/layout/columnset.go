// Package layout implements the split-size and projection indices built
// from a table's layout metadata, and the process-wide factory that caches
// them per table.
package layout

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// ColumnSet is a set of column ids within a layout's column order.
type ColumnSet struct {
	bitmap *roaring.Bitmap
}

// NewColumnSet builds the set of ids of the accessed columns. Columns not
// present in the column order are ignored; the layout simply cannot
// optimize for them.
func NewColumnSet(columnOrder []string, accessedColumns []string) ColumnSet {
	ids := make(map[string]uint32, len(columnOrder))
	for i, name := range columnOrder {
		ids[name] = uint32(i)
	}
	bitmap := roaring.New()
	for _, name := range accessedColumns {
		if id, ok := ids[name]; ok {
			bitmap.Add(id)
		}
	}
	return ColumnSet{bitmap: bitmap}
}

// IsEmpty reports whether no accessed column is in the column order.
func (c ColumnSet) IsEmpty() bool {
	return c.bitmap.IsEmpty()
}

// Cardinality returns the number of columns in the set.
func (c ColumnSet) Cardinality() int {
	return int(c.bitmap.GetCardinality())
}

// SubsetOf reports whether every column of c is in other.
func (c ColumnSet) SubsetOf(other ColumnSet) bool {
	return roaring.And(c.bitmap, other.bitmap).GetCardinality() == c.bitmap.GetCardinality()
}

// Equals reports set equality.
func (c ColumnSet) Equals(other ColumnSet) bool {
	return c.bitmap.Equals(other.bitmap)
}

// Columns returns the member ids in ascending order.
func (c ColumnSet) Columns() []uint32 {
	return c.bitmap.ToArray()
}
