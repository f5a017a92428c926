package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnjylwb/pixels/metadata"
	"github.com/hnjylwb/pixels/stats"
)

var testOrder = &metadata.Order{ColumnOrder: []string{"a", "b", "c", "d"}}

func TestColumnSet(t *testing.T) {
	set := NewColumnSet(testOrder.ColumnOrder, []string{"b", "d", "unknown"})
	assert.Equal(t, 2, set.Cardinality())
	assert.Equal(t, []uint32{1, 3}, set.Columns())

	super := NewColumnSet(testOrder.ColumnOrder, []string{"a", "b", "d"})
	assert.True(t, set.SubsetOf(super))
	assert.False(t, super.SubsetOf(set))
	assert.True(t, set.Equals(NewColumnSet(testOrder.ColumnOrder, []string{"d", "b"})))
}

func TestInvertedSplitsIndexSearch(t *testing.T) {
	splits := &metadata.Splits{
		NumRowGroupInBlock: 32,
		SplitPatterns: []metadata.SplitPatternSpec{
			{AccessedColumns: []string{"a", "b", "c", "d"}, NumRowGroupInSplit: 16},
			{AccessedColumns: []string{"a", "b"}, NumRowGroupInSplit: 4},
			{AccessedColumns: []string{"a", "b", "c"}, NumRowGroupInSplit: 8},
		},
	}
	index, err := NewInvertedSplitsIndex(2, testOrder, splits)
	require.NoError(t, err)
	assert.Equal(t, 2, index.Version())
	assert.Equal(t, 16, index.MaxSplitSize())

	// The covering pattern with the smallest split size wins.
	got := index.Search(NewColumnSet(testOrder.ColumnOrder, []string{"a"}))
	assert.Equal(t, 4, got.SplitSize)
	got = index.Search(NewColumnSet(testOrder.ColumnOrder, []string{"a", "c"}))
	assert.Equal(t, 8, got.SplitSize)
	// No pattern covers d except the default full pattern.
	got = index.Search(NewColumnSet(testOrder.ColumnOrder, []string{"b", "d"}))
	assert.Equal(t, 16, got.SplitSize)
	// Columns outside the order fall back to the default.
	got = index.Search(NewColumnSet(testOrder.ColumnOrder, []string{"zz"}))
	assert.Equal(t, 16, got.SplitSize)
}

func TestInvertedSplitsIndexRejectsEmpty(t *testing.T) {
	_, err := NewInvertedSplitsIndex(1, testOrder, &metadata.Splits{NumRowGroupInBlock: 8})
	assert.Error(t, err)
	_, err = NewInvertedSplitsIndex(1, testOrder, &metadata.Splits{
		NumRowGroupInBlock: 8,
		SplitPatterns: []metadata.SplitPatternSpec{
			{AccessedColumns: []string{"a"}, NumRowGroupInSplit: 0},
		},
	})
	assert.Error(t, err)
}

func TestCostBasedSplitsIndex(t *testing.T) {
	tableStats := &stats.TableStatistics{
		TableName:        "t",
		AvgRowGroupBytes: 64 * 1024 * 1024,
	}
	index, err := NewCostBasedSplitsIndex(1, tableStats, 256*1024*1024, 16)
	require.NoError(t, err)
	// 256 MiB target over 64 MiB row groups.
	assert.Equal(t, 4, index.Search(ColumnSet{}).SplitSize)

	// Clamped to the block size.
	index, err = NewCostBasedSplitsIndex(1, tableStats, 4*1024*1024*1024, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, index.Search(ColumnSet{}).SplitSize)

	_, err = NewCostBasedSplitsIndex(1, nil, 0, 16)
	assert.Error(t, err)
}

func TestProjectionsIndexSearch(t *testing.T) {
	projections := &metadata.Projections{
		ProjectionPatterns: []metadata.ProjectionPatternSpec{
			{AccessedColumns: []string{"a", "b", "c", "d"}, Path: "/proj/full/"},
			{AccessedColumns: []string{"a", "b"}, Path: "/proj/ab/"},
		},
	}
	index := NewInvertedProjectionsIndex(1, testOrder, projections)

	got := index.Search(NewColumnSet(testOrder.ColumnOrder, []string{"b"}))
	require.NotNil(t, got)
	assert.Equal(t, "/proj/ab/", got.Path)

	got = index.Search(NewColumnSet(testOrder.ColumnOrder, []string{"b", "c"}))
	require.NotNil(t, got)
	assert.Equal(t, "/proj/full/", got.Path)

	assert.Nil(t, index.Search(NewColumnSet(testOrder.ColumnOrder, []string{"zz"})))
}

func TestFactoryRebuildAndStaleness(t *testing.T) {
	factory := NewFactory()
	stn := metadata.SchemaTableName{SchemaName: "q", TableName: "t"}
	assert.Nil(t, factory.SplitsIndex(stn))

	splits := &metadata.Splits{
		NumRowGroupInBlock: 8,
		SplitPatterns: []metadata.SplitPatternSpec{
			{AccessedColumns: []string{"a"}, NumRowGroupInSplit: 2},
		},
	}
	built := 0
	build := func(version int) func() (SplitsIndex, error) {
		return func() (SplitsIndex, error) {
			built++
			return NewInvertedSplitsIndex(version, testOrder, splits)
		}
	}

	index, err := factory.RebuildSplitsIndex(stn, 1, build(1))
	require.NoError(t, err)
	assert.Equal(t, 1, index.Version())
	assert.Equal(t, 1, built)
	assert.Same(t, index, factory.SplitsIndex(stn))

	// A rebuild to the cached version reuses the snapshot.
	again, err := factory.RebuildSplitsIndex(stn, 1, build(1))
	require.NoError(t, err)
	assert.Same(t, index, again)
	assert.Equal(t, 1, built)

	// A newer layout version forces a rebuild.
	newer, err := factory.RebuildSplitsIndex(stn, 3, build(3))
	require.NoError(t, err)
	assert.Equal(t, 3, newer.Version())
	assert.Equal(t, 2, built)
	assert.Same(t, newer, factory.SplitsIndex(stn))
}
