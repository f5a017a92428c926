// Package plan is the logical plan IR the compiler consumes: base, joined,
// and aggregated tables. Construction validates the plan invariants, so a
// Table that exists is structurally sound. Tables are immutable.
package plan

import (
	"errors"
	"fmt"

	"github.com/hnjylwb/pixels/executor/predicate"
)

// ErrInvalidPlan is wrapped by every plan validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

// TableType discriminates the Table variants.
type TableType string

const (
	TypeBase       TableType = "BASE"
	TypeJoined     TableType = "JOINED"
	TypeAggregated TableType = "AGGREGATED"
)

// Table is a node of the logical plan tree.
type Table interface {
	TableType() TableType
	SchemaName() string
	TableName() string
	ColumnNames() []string
}

// BaseTable is a physical table scanned from storage.
type BaseTable struct {
	schemaName  string
	tableName   string
	columnNames []string
	filter      *predicate.TableScanFilter
}

// NewBaseTable creates a base table. A nil filter means scan everything.
func NewBaseTable(schemaName, tableName string, columnNames []string,
	filter *predicate.TableScanFilter) (*BaseTable, error) {
	if schemaName == "" || tableName == "" {
		return nil, fmt.Errorf("%w: base table must have schema and table names", ErrInvalidPlan)
	}
	if len(columnNames) == 0 {
		return nil, fmt.Errorf("%w: base table %s.%s has no columns", ErrInvalidPlan, schemaName, tableName)
	}
	if filter == nil {
		filter = predicate.Empty(schemaName, tableName)
	}
	for _, id := range filter.FilteredColumnIDs() {
		if id < 0 || id >= len(columnNames) {
			return nil, fmt.Errorf("%w: filter of %s.%s references column id %d out of range",
				ErrInvalidPlan, schemaName, tableName, id)
		}
		if name := filter.ColumnFilter(id).ColumnName; name != columnNames[id] {
			return nil, fmt.Errorf("%w: filter of %s.%s names column %q for id %d, table has %q",
				ErrInvalidPlan, schemaName, tableName, name, id, columnNames[id])
		}
	}
	return &BaseTable{
		schemaName:  schemaName,
		tableName:   tableName,
		columnNames: columnNames,
		filter:      filter,
	}, nil
}

func (t *BaseTable) TableType() TableType               { return TypeBase }
func (t *BaseTable) SchemaName() string                 { return t.schemaName }
func (t *BaseTable) TableName() string                  { return t.tableName }
func (t *BaseTable) ColumnNames() []string              { return t.columnNames }
func (t *BaseTable) Filter() *predicate.TableScanFilter { return t.filter }

// JoinedTable is the result of a join; its column names are the alias lists
// of the two sides in join order.
type JoinedTable struct {
	schemaName  string
	tableName   string
	columnNames []string
	join        *Join
}

// NewJoinedTable creates a joined table over a validated join.
func NewJoinedTable(schemaName, tableName string, join *Join) (*JoinedTable, error) {
	if join == nil {
		return nil, fmt.Errorf("%w: joined table %s.%s has no join", ErrInvalidPlan, schemaName, tableName)
	}
	columnNames := make([]string, 0, len(join.LeftColumnAlias)+len(join.RightColumnAlias))
	columnNames = append(columnNames, join.LeftColumnAlias...)
	columnNames = append(columnNames, join.RightColumnAlias...)
	return &JoinedTable{
		schemaName:  schemaName,
		tableName:   tableName,
		columnNames: columnNames,
		join:        join,
	}, nil
}

func (t *JoinedTable) TableType() TableType  { return TypeJoined }
func (t *JoinedTable) SchemaName() string    { return t.schemaName }
func (t *JoinedTable) TableName() string     { return t.tableName }
func (t *JoinedTable) ColumnNames() []string { return t.columnNames }
func (t *JoinedTable) Join() *Join           { return t.join }

// AggregatedTable is the result of a grouped aggregation.
type AggregatedTable struct {
	schemaName  string
	tableName   string
	columnNames []string
	aggregation *Aggregation
}

// NewAggregatedTable creates an aggregated table over a validated
// aggregation.
func NewAggregatedTable(schemaName, tableName string, aggregation *Aggregation) (*AggregatedTable, error) {
	if aggregation == nil {
		return nil, fmt.Errorf("%w: aggregated table %s.%s has no aggregation",
			ErrInvalidPlan, schemaName, tableName)
	}
	columnNames := make([]string, 0,
		len(aggregation.GroupKeyColumnAlias)+len(aggregation.ResultColumnAlias))
	columnNames = append(columnNames, aggregation.GroupKeyColumnAlias...)
	columnNames = append(columnNames, aggregation.ResultColumnAlias...)
	return &AggregatedTable{
		schemaName:  schemaName,
		tableName:   tableName,
		columnNames: columnNames,
		aggregation: aggregation,
	}, nil
}

func (t *AggregatedTable) TableType() TableType      { return TypeAggregated }
func (t *AggregatedTable) SchemaName() string        { return t.schemaName }
func (t *AggregatedTable) TableName() string         { return t.tableName }
func (t *AggregatedTable) ColumnNames() []string     { return t.columnNames }
func (t *AggregatedTable) Aggregation() *Aggregation { return t.aggregation }
