// Package predicate models the scan filters that are pushed down to the
// scan and partition workers. Filters stay structured inside the planner and
// are serialized to JSON only when a worker input is produced.
package predicate

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Bound is one end of a range filter. An empty Value with Unbounded true
// leaves that end open.
type Bound struct {
	Value     string `json:"value"`
	Inclusive bool   `json:"inclusive"`
	Unbounded bool   `json:"unbounded"`
}

// Range is a contiguous value interval accepted by a column filter.
type Range struct {
	Lower Bound `json:"lower"`
	Upper Bound `json:"upper"`
}

// ColumnFilter is the predicate on a single column: a disjunction of ranges
// and discrete values.
type ColumnFilter struct {
	ColumnName     string   `json:"columnName"`
	Type           string   `json:"type"`
	Ranges         []Range  `json:"ranges,omitempty"`
	DiscreteValues []string `json:"discreteValues,omitempty"`
}

// TableScanFilter is the predicate tree of a base table scan, keyed by
// column id within the table's column list.
type TableScanFilter struct {
	SchemaName    string                `json:"schemaName"`
	TableName     string                `json:"tableName"`
	ColumnFilters map[int]*ColumnFilter `json:"columnFilters"`
}

// Empty returns a filter that accepts every row of the table.
func Empty(schemaName, tableName string) *TableScanFilter {
	return &TableScanFilter{
		SchemaName:    schemaName,
		TableName:     tableName,
		ColumnFilters: map[int]*ColumnFilter{},
	}
}

// NewTableScanFilter creates a filter over the given per-column predicates.
func NewTableScanFilter(schemaName, tableName string, columnFilters map[int]*ColumnFilter) *TableScanFilter {
	if columnFilters == nil {
		columnFilters = map[int]*ColumnFilter{}
	}
	return &TableScanFilter{
		SchemaName:    schemaName,
		TableName:     tableName,
		ColumnFilters: columnFilters,
	}
}

// IsEmpty reports whether the filter accepts every row.
func (f *TableScanFilter) IsEmpty() bool {
	return f == nil || len(f.ColumnFilters) == 0
}

// ColumnFilter returns the predicate on column id, or nil.
func (f *TableScanFilter) ColumnFilter(columnID int) *ColumnFilter {
	if f == nil {
		return nil
	}
	return f.ColumnFilters[columnID]
}

// FilteredColumnIDs returns the ids of the filtered columns in ascending
// order.
func (f *TableScanFilter) FilteredColumnIDs() []int {
	if f == nil {
		return nil
	}
	ids := make([]int, 0, len(f.ColumnFilters))
	for id := range f.ColumnFilters {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MarshalJSONString serializes the filter for a worker input descriptor.
func (f *TableScanFilter) MarshalJSONString() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to serialize filter of %s.%s: %w",
			f.SchemaName, f.TableName, err)
	}
	return string(data), nil
}
