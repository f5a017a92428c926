package layout

import (
	"github.com/hnjylwb/pixels/metadata"
)

// ProjectionPattern maps a column subset to the compact path holding
// exactly those columns.
type ProjectionPattern struct {
	Columns ColumnSet
	Path    string
}

// ProjectionsIndex finds a projection-optimized compact path for a query.
type ProjectionsIndex interface {
	Version() int
	// Search returns the best projection pattern covering the accessed
	// columns, or nil when none does.
	Search(columns ColumnSet) *ProjectionPattern
}

// InvertedProjectionsIndex scans the layout's projection patterns for the
// narrowest one covering the accessed columns.
type InvertedProjectionsIndex struct {
	version  int
	patterns []ProjectionPattern
}

// NewInvertedProjectionsIndex builds the index from a layout's order and
// projections documents.
func NewInvertedProjectionsIndex(version int, order *metadata.Order,
	projections *metadata.Projections) *InvertedProjectionsIndex {
	index := &InvertedProjectionsIndex{version: version}
	for _, spec := range projections.ProjectionPatterns {
		index.patterns = append(index.patterns, ProjectionPattern{
			Columns: NewColumnSet(order.ColumnOrder, spec.AccessedColumns),
			Path:    spec.Path,
		})
	}
	return index
}

func (x *InvertedProjectionsIndex) Version() int {
	return x.version
}

// Search returns the covering pattern with the fewest columns; ties break
// toward the earliest pattern so compilation stays deterministic.
func (x *InvertedProjectionsIndex) Search(columns ColumnSet) *ProjectionPattern {
	if columns.IsEmpty() {
		return nil
	}
	best := -1
	for i := range x.patterns {
		if !columns.SubsetOf(x.patterns[i].Columns) {
			continue
		}
		if best < 0 || x.patterns[i].Columns.Cardinality() < x.patterns[best].Columns.Cardinality() {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &x.patterns[best]
}
