package join

import (
	"github.com/hnjylwb/pixels/executor/predicate"
	"github.com/hnjylwb/pixels/stats"
)

// Table is the view of a plan table the advisor needs. plan.Table satisfies
// it; keeping the interface here avoids a dependency from the enums onto the
// IR.
type Table interface {
	SchemaName() string
	TableName() string
	ColumnNames() []string
}

// FilteredTable is implemented by base tables, which carry a scan filter.
type FilteredTable interface {
	Table
	Filter() *predicate.TableScanFilter
}

// Advisor supplies the planning decisions that depend on table statistics:
// the partition fan-out of a partitioned join and the selectivity of a
// table's filters.
type Advisor interface {
	// NumPartitions returns the hash fan-out for a partitioned join of the
	// two tables.
	NumPartitions(left, right Table, endian Endian) int
	// TableSelectivity estimates the fraction of rows passing the table's
	// filters. Negative means unknown.
	TableSelectivity(table Table) float64
}

// StaticAdvisor returns fixed answers. It is the advisor of choice for
// tests and for deployments without a statistics service.
type StaticAdvisor struct {
	// Partitions maps "schema.table" of the join's larger side to a
	// fan-out. DefaultPartitions applies when absent.
	Partitions        map[string]int
	DefaultPartitions int
	// Selectivities maps "schema.table" to a fixed selectivity. Tables not
	// present are reported unknown (-1).
	Selectivities map[string]float64
}

// NewStaticAdvisor creates a StaticAdvisor with the given default fan-out.
func NewStaticAdvisor(defaultPartitions int) *StaticAdvisor {
	return &StaticAdvisor{
		Partitions:        map[string]int{},
		DefaultPartitions: defaultPartitions,
		Selectivities:     map[string]float64{},
	}
}

func key(t Table) string {
	return t.SchemaName() + "." + t.TableName()
}

func (a *StaticAdvisor) NumPartitions(left, right Table, endian Endian) int {
	large := right
	if endian == LargeLeft {
		large = left
	}
	if n, ok := a.Partitions[key(large)]; ok {
		return n
	}
	return a.DefaultPartitions
}

func (a *StaticAdvisor) TableSelectivity(table Table) float64 {
	if s, ok := a.Selectivities[key(table)]; ok {
		return s
	}
	return -1
}

// StatsAdvisor derives its answers from collected parquet statistics.
type StatsAdvisor struct {
	collector *stats.Collector
	// RowsPerPartition controls the partitioned-join fan-out; one hash
	// bucket should hold roughly this many rows of the larger side.
	RowsPerPartition int64
	// DefaultPartitions applies when the larger side has no statistics.
	DefaultPartitions int
	// MaxPartitions bounds the fan-out.
	MaxPartitions int
}

// NewStatsAdvisor creates a StatsAdvisor over the collector.
func NewStatsAdvisor(collector *stats.Collector) *StatsAdvisor {
	return &StatsAdvisor{
		collector:         collector,
		RowsPerPartition:  8 * 1024 * 1024,
		DefaultPartitions: 8,
		MaxPartitions:     512,
	}
}

func (a *StatsAdvisor) NumPartitions(left, right Table, endian Endian) int {
	large := right
	if endian == LargeLeft {
		large = left
	}
	ts := a.collector.Get(large.TableName())
	if ts == nil || ts.RowCount <= 0 {
		return a.DefaultPartitions
	}
	n := int((ts.RowCount + a.RowsPerPartition - 1) / a.RowsPerPartition)
	if n < 1 {
		n = 1
	}
	if n > a.MaxPartitions {
		n = a.MaxPartitions
	}
	return n
}

// TableSelectivity estimates selectivity from the filter's range bounds
// against the column's footer bounds. Joined tables and tables without
// statistics are unknown.
func (a *StatsAdvisor) TableSelectivity(table Table) float64 {
	base, ok := table.(FilteredTable)
	if !ok {
		return -1
	}
	filter := base.Filter()
	if filter.IsEmpty() {
		return 1
	}
	ts := a.collector.Get(table.TableName())
	if ts == nil {
		return -1
	}
	selectivity := 1.0
	known := false
	for _, id := range filter.FilteredColumnIDs() {
		cf := filter.ColumnFilter(id)
		cs := ts.ColumnStats[cf.ColumnName]
		if cs == nil || !cs.HasBounds {
			continue
		}
		selectivity *= columnSelectivity(cf, cs)
		known = true
	}
	if !known {
		return -1
	}
	return selectivity
}

// columnSelectivity is a coarse textual-range estimate: each discrete value
// counts a nominal fraction, each half-open range counts half the domain.
// The footer bounds only tell us whether the filter can match at all.
func columnSelectivity(cf *predicate.ColumnFilter, cs *stats.ColumnStatistics) float64 {
	if len(cf.DiscreteValues) > 0 && len(cf.Ranges) == 0 {
		matching := 0
		for _, v := range cf.DiscreteValues {
			if v >= cs.MinValue && v <= cs.MaxValue {
				matching++
			}
		}
		if matching == 0 {
			return 0.01
		}
		return 0.1 * float64(matching)
	}
	fraction := 0.0
	for _, r := range cf.Ranges {
		switch {
		case r.Lower.Unbounded && r.Upper.Unbounded:
			fraction += 1
		case r.Lower.Unbounded:
			if r.Upper.Value < cs.MinValue {
				continue
			}
			fraction += 0.5
		case r.Upper.Unbounded:
			if r.Lower.Value > cs.MaxValue {
				continue
			}
			fraction += 0.5
		default:
			if r.Upper.Value < cs.MinValue || r.Lower.Value > cs.MaxValue {
				continue
			}
			fraction += 0.25
		}
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction == 0 {
		fraction = 0.01
	}
	return fraction
}
