package plan

import (
	"fmt"

	"github.com/hnjylwb/pixels/executor/join"
)

// Join is the join node of a joined table. Projections select the columns
// of each child that survive into the join result; the alias lists name the
// surviving columns, in child column order.
type Join struct {
	LeftTable         Table
	RightTable        Table
	LeftKeyColumnIds  []int
	RightKeyColumnIds []int
	LeftProjection    []bool
	RightProjection   []bool
	LeftColumnAlias   []string
	RightColumnAlias  []string
	JoinType          join.Type
	JoinAlgo          join.Algorithm
	JoinEndian        join.Endian
}

// NewJoin validates and creates a join node.
//
// The validated invariants: a multi-pipeline join (both children joined) is
// small-left; a single-pipeline join has a base table on the right; left
// and full outer joins cannot be broadcast.
func NewJoin(left, right Table,
	leftKeyColumnIds, rightKeyColumnIds []int,
	leftProjection, rightProjection []bool,
	leftColumnAlias, rightColumnAlias []string,
	joinType join.Type, joinAlgo join.Algorithm, joinEndian join.Endian) (*Join, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("%w: join has a nil child", ErrInvalidPlan)
	}
	name := left.TableName() + "-" + right.TableName()
	if left.TableType() == TypeAggregated || right.TableType() == TypeAggregated {
		return nil, fmt.Errorf("%w: join %s has an aggregated child", ErrInvalidPlan, name)
	}
	if len(leftKeyColumnIds) == 0 || len(leftKeyColumnIds) != len(rightKeyColumnIds) {
		return nil, fmt.Errorf("%w: join %s has mismatched key columns", ErrInvalidPlan, name)
	}
	if len(leftProjection) != len(left.ColumnNames()) {
		return nil, fmt.Errorf("%w: join %s left projection has %d entries for %d columns",
			ErrInvalidPlan, name, len(leftProjection), len(left.ColumnNames()))
	}
	if len(rightProjection) != len(right.ColumnNames()) {
		return nil, fmt.Errorf("%w: join %s right projection has %d entries for %d columns",
			ErrInvalidPlan, name, len(rightProjection), len(right.ColumnNames()))
	}
	if n := countTrue(leftProjection); n != len(leftColumnAlias) {
		return nil, fmt.Errorf("%w: join %s projects %d left columns but aliases %d",
			ErrInvalidPlan, name, n, len(leftColumnAlias))
	}
	if n := countTrue(rightProjection); n != len(rightColumnAlias) {
		return nil, fmt.Errorf("%w: join %s projects %d right columns but aliases %d",
			ErrInvalidPlan, name, n, len(rightColumnAlias))
	}
	for _, id := range leftKeyColumnIds {
		if id < 0 || id >= len(left.ColumnNames()) {
			return nil, fmt.Errorf("%w: join %s left key column id %d out of range", ErrInvalidPlan, name, id)
		}
	}
	for _, id := range rightKeyColumnIds {
		if id < 0 || id >= len(right.ColumnNames()) {
			return nil, fmt.Errorf("%w: join %s right key column id %d out of range", ErrInvalidPlan, name, id)
		}
	}
	switch joinAlgo {
	case join.AlgoBroadcast, join.AlgoPartitioned:
	default:
		return nil, fmt.Errorf("%w: join %s uses algorithm %s, which cannot appear in a user plan",
			ErrInvalidPlan, name, joinAlgo)
	}
	if (joinType == join.TypeEquiLeft || joinType == join.TypeEquiFull) &&
		joinAlgo == join.AlgoBroadcast {
		return nil, fmt.Errorf("%w: join %s is a %s join, which cannot be broadcast",
			ErrInvalidPlan, name, joinType)
	}
	if left.TableType() == TypeJoined && right.TableType() == TypeJoined {
		if joinEndian != join.SmallLeft {
			return nil, fmt.Errorf("%w: multi-pipeline join %s must be small-left", ErrInvalidPlan, name)
		}
	} else if right.TableType() != TypeBase {
		return nil, fmt.Errorf("%w: single-pipeline join %s must have a base table on the right",
			ErrInvalidPlan, name)
	}
	return &Join{
		LeftTable:         left,
		RightTable:        right,
		LeftKeyColumnIds:  leftKeyColumnIds,
		RightKeyColumnIds: rightKeyColumnIds,
		LeftProjection:    leftProjection,
		RightProjection:   rightProjection,
		LeftColumnAlias:   leftColumnAlias,
		RightColumnAlias:  rightColumnAlias,
		JoinType:          joinType,
		JoinAlgo:          joinAlgo,
		JoinEndian:        joinEndian,
	}, nil
}

func countTrue(projection []bool) int {
	n := 0
	for _, b := range projection {
		if b {
			n++
		}
	}
	return n
}
