package layout

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hnjylwb/pixels/metadata"
	"github.com/hnjylwb/pixels/stats"
)

// SplitPattern is the answer of a splits index: read SplitSize row groups
// (or ordered files) per input split.
type SplitPattern struct {
	SplitSize int
}

// SplitsIndex chooses a split size for a query given the set of columns it
// reads.
type SplitsIndex interface {
	// Version is the layout version the index was built from.
	Version() int
	// Search returns the best split pattern for the accessed columns.
	Search(columns ColumnSet) SplitPattern
	// MaxSplitSize bounds any adjusted split size.
	MaxSplitSize() int
}

// InvertedSplitsIndex matches the accessed columns against the layout's
// pre-computed split patterns. Each column id maps to the bitmap of
// patterns covering it; intersecting the bitmaps of the accessed columns
// yields the covering patterns, and the one reading the fewest row groups
// wins. Queries no pattern covers fall back to the default pattern.
type InvertedSplitsIndex struct {
	version      int
	columnOrder  []string
	patterns     []SplitPattern
	patternSets  []ColumnSet
	inverted     map[uint32]*roaring.Bitmap
	defaultIndex int
	maxSplitSize int
}

// NewInvertedSplitsIndex builds the index from a layout's order and splits
// documents. The default pattern is the one covering the most columns (ties
// broken toward the larger split size).
func NewInvertedSplitsIndex(version int, order *metadata.Order, splits *metadata.Splits) (*InvertedSplitsIndex, error) {
	if len(splits.SplitPatterns) == 0 {
		return nil, fmt.Errorf("layout version %d has no split patterns", version)
	}
	index := &InvertedSplitsIndex{
		version:     version,
		columnOrder: order.ColumnOrder,
		inverted:    make(map[uint32]*roaring.Bitmap),
	}
	for i, spec := range splits.SplitPatterns {
		if spec.NumRowGroupInSplit <= 0 {
			return nil, fmt.Errorf("split pattern %d has non-positive split size %d",
				i, spec.NumRowGroupInSplit)
		}
		pattern := SplitPattern{SplitSize: spec.NumRowGroupInSplit}
		set := NewColumnSet(order.ColumnOrder, spec.AccessedColumns)
		index.patterns = append(index.patterns, pattern)
		index.patternSets = append(index.patternSets, set)
		for _, col := range set.Columns() {
			bitmap := index.inverted[col]
			if bitmap == nil {
				bitmap = roaring.New()
				index.inverted[col] = bitmap
			}
			bitmap.Add(uint32(i))
		}
		if pattern.SplitSize > index.maxSplitSize {
			index.maxSplitSize = pattern.SplitSize
		}
		best := index.patternSets[index.defaultIndex]
		if set.Cardinality() > best.Cardinality() ||
			(set.Cardinality() == best.Cardinality() &&
				pattern.SplitSize > index.patterns[index.defaultIndex].SplitSize) {
			index.defaultIndex = i
		}
	}
	return index, nil
}

func (x *InvertedSplitsIndex) Version() int {
	return x.version
}

func (x *InvertedSplitsIndex) MaxSplitSize() int {
	return x.maxSplitSize
}

// Search intersects the per-column pattern bitmaps of the accessed columns.
// Among the covering patterns the smallest split size wins, so a worker
// reads as few unused row groups as possible; ties break toward the lowest
// pattern index to keep compilation deterministic.
func (x *InvertedSplitsIndex) Search(columns ColumnSet) SplitPattern {
	if columns.IsEmpty() {
		return x.patterns[x.defaultIndex]
	}
	var covering *roaring.Bitmap
	for _, col := range columns.Columns() {
		bitmap := x.inverted[col]
		if bitmap == nil {
			return x.patterns[x.defaultIndex]
		}
		if covering == nil {
			covering = bitmap.Clone()
		} else {
			covering.And(bitmap)
		}
		if covering.IsEmpty() {
			return x.patterns[x.defaultIndex]
		}
	}
	best := -1
	covering.Iterate(func(i uint32) bool {
		if best < 0 || x.patterns[i].SplitSize < x.patterns[best].SplitSize {
			best = int(i)
		}
		return true
	})
	return x.patterns[best]
}

// CostBasedSplitsIndex sizes splits from table statistics: a split should
// cover roughly TargetSplitBytes of data, no matter which columns are read.
type CostBasedSplitsIndex struct {
	version          int
	rowGroupBytes    int64
	targetSplitBytes int64
	maxSplitSize     int
}

// DefaultTargetSplitBytes is the read volume one split aims for when no
// target is configured.
const DefaultTargetSplitBytes = 256 * 1024 * 1024

// NewCostBasedSplitsIndex builds a cost-based index from collected
// statistics. maxSplitSize is the layout's row-group-per-block count; a
// split never exceeds one block.
func NewCostBasedSplitsIndex(version int, tableStats *stats.TableStatistics,
	targetSplitBytes int64, maxSplitSize int) (*CostBasedSplitsIndex, error) {
	if tableStats == nil || tableStats.AvgRowGroupBytes <= 0 {
		return nil, fmt.Errorf("cost-based splits index needs row-group statistics")
	}
	if targetSplitBytes <= 0 {
		targetSplitBytes = DefaultTargetSplitBytes
	}
	if maxSplitSize <= 0 {
		return nil, fmt.Errorf("cost-based splits index needs a positive max split size")
	}
	return &CostBasedSplitsIndex{
		version:          version,
		rowGroupBytes:    tableStats.AvgRowGroupBytes,
		targetSplitBytes: targetSplitBytes,
		maxSplitSize:     maxSplitSize,
	}, nil
}

func (x *CostBasedSplitsIndex) Version() int {
	return x.version
}

func (x *CostBasedSplitsIndex) MaxSplitSize() int {
	return x.maxSplitSize
}

func (x *CostBasedSplitsIndex) Search(columns ColumnSet) SplitPattern {
	size := int(x.targetSplitBytes / x.rowGroupBytes)
	if size < 1 {
		size = 1
	}
	if size > x.maxSplitSize {
		size = x.maxSplitSize
	}
	return SplitPattern{SplitSize: size}
}
