package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnjylwb/pixels/executor/predicate"
	"github.com/hnjylwb/pixels/stats"
)

type fakeTable struct {
	schema  string
	name    string
	columns []string
	filter  *predicate.TableScanFilter
}

func (f *fakeTable) SchemaName() string    { return f.schema }
func (f *fakeTable) TableName() string     { return f.name }
func (f *fakeTable) ColumnNames() []string { return f.columns }

func (f *fakeTable) Filter() *predicate.TableScanFilter {
	if f.filter == nil {
		return predicate.Empty(f.schema, f.name)
	}
	return f.filter
}

func TestStaticAdvisor(t *testing.T) {
	advisor := NewStaticAdvisor(4)
	small := &fakeTable{schema: "q", name: "small"}
	large := &fakeTable{schema: "q", name: "large"}

	assert.Equal(t, 4, advisor.NumPartitions(small, large, SmallLeft))
	advisor.Partitions["q.large"] = 16
	assert.Equal(t, 16, advisor.NumPartitions(small, large, SmallLeft))
	// Large-left swaps which side sizes the fan-out.
	assert.Equal(t, 4, advisor.NumPartitions(small, large, LargeLeft))

	assert.Negative(t, advisor.TableSelectivity(small))
	advisor.Selectivities["q.small"] = 0.2
	assert.InDelta(t, 0.2, advisor.TableSelectivity(small), 1e-9)
}

func TestStatsAdvisorNumPartitions(t *testing.T) {
	collector := stats.NewCollector()
	advisor := NewStatsAdvisor(collector)
	advisor.RowsPerPartition = 1000

	left := &fakeTable{schema: "q", name: "l"}
	right := &fakeTable{schema: "q", name: "r"}

	// Unknown statistics fall back to the default fan-out.
	assert.Equal(t, advisor.DefaultPartitions, advisor.NumPartitions(left, right, SmallLeft))

	collector.Put(&stats.TableStatistics{TableName: "r", RowCount: 3500})
	assert.Equal(t, 4, advisor.NumPartitions(left, right, SmallLeft))

	collector.Put(&stats.TableStatistics{TableName: "r", RowCount: 1 << 40})
	assert.Equal(t, advisor.MaxPartitions, advisor.NumPartitions(left, right, SmallLeft))
}

func TestStatsAdvisorSelectivity(t *testing.T) {
	collector := stats.NewCollector()
	advisor := NewStatsAdvisor(collector)

	unfiltered := &fakeTable{schema: "q", name: "t", columns: []string{"k"}}
	assert.InDelta(t, 1.0, advisor.TableSelectivity(unfiltered), 1e-9)

	filter := predicate.NewTableScanFilter("q", "t", map[int]*predicate.ColumnFilter{
		0: {ColumnName: "k", DiscreteValues: []string{"m"}},
	})
	filtered := &fakeTable{schema: "q", name: "t", columns: []string{"k"}, filter: filter}

	// No statistics: unknown.
	assert.Negative(t, advisor.TableSelectivity(filtered))

	collector.Put(&stats.TableStatistics{
		TableName: "t",
		ColumnStats: map[string]*stats.ColumnStatistics{
			"k": {ColumnName: "k", MinValue: "a", MaxValue: "z", HasBounds: true},
		},
	})
	s := advisor.TableSelectivity(filtered)
	require.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)

	// A value outside the column bounds estimates near zero.
	outside := predicate.NewTableScanFilter("q", "t", map[int]*predicate.ColumnFilter{
		0: {ColumnName: "k", DiscreteValues: []string{"~~~"}},
	})
	outsideTable := &fakeTable{schema: "q", name: "t", columns: []string{"k"}, filter: outside}
	assert.Less(t, advisor.TableSelectivity(outsideTable), 0.05)
}
