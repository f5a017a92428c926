package executor

import (
	"context"
	"fmt"

	"github.com/hnjylwb/pixels/executor/domain"
	"github.com/hnjylwb/pixels/executor/input"
	"github.com/hnjylwb/pixels/executor/join"
	"github.com/hnjylwb/pixels/executor/operator"
	"github.com/hnjylwb/pixels/executor/plan"
)

// multiPipelineJoinOperator compiles a join whose children are both joined
// tables, i.e. the meeting point of two pipelines. Such joins are always
// small-left.
//
// A broadcast meeting point requires the left pipeline to have compiled to
// an incomplete chain join; the chain is completed with the right
// pipeline's outputs (broadcast family) or grafted onto the right
// pipeline's partitioned join inputs (partitioned). A small-left broadcast
// pipeline that fails to chain is rejected; plans with that shape must use
// partitioned joins.
func (e *Executor) multiPipelineJoinOperator(ctx context.Context, joinedTable *plan.JoinedTable,
	parent *plan.JoinedTable) (operator.JoinOperator, error) {
	j := joinedTable.Join()
	leftTable := j.LeftTable.(*plan.JoinedTable)
	rightTable := j.RightTable.(*plan.JoinedTable)
	if j.JoinEndian != join.SmallLeft {
		return nil, fmt.Errorf("%w: multi-pipeline join %s is not small-left",
			ErrInvalidPlan, joinedTable.TableName())
	}

	switch j.JoinAlgo {
	case join.AlgoBroadcast:
		leftOperator, err := e.joinOperator(ctx, leftTable, joinedTable)
		if err != nil {
			return nil, err
		}
		rightOperator, err := e.joinOperator(ctx, rightTable, nil)
		if err != nil {
			return nil, err
		}
		chain := leftOperator.IncompleteChain()
		if chain == nil {
			return nil, fmt.Errorf("%w: join %s broadcasts a joined left child that did not form a chain join",
				ErrInvalidPlan, joinedTable.TableName())
		}
		switch rightOperator.JoinAlgo() {
		case join.AlgoBroadcast, join.AlgoBroadcastChain:
			return e.completeChainOverBroadcast(joinedTable, parent, chain, rightTable, rightOperator)
		case join.AlgoPartitioned:
			return e.promoteToPartitionedChain(joinedTable, parent, chain, rightOperator)
		default:
			return nil, fmt.Errorf("%w: join %s has a %s right child, only broadcast, broadcast-chain, or partitioned children are accepted",
				ErrInvalidPlan, joinedTable.TableName(), rightOperator.JoinAlgo())
		}

	case join.AlgoPartitioned:
		leftOperator, err := e.joinOperator(ctx, leftTable, joinedTable)
		if err != nil {
			return nil, err
		}
		rightOperator, err := e.joinOperator(ctx, rightTable, joinedTable)
		if err != nil {
			return nil, err
		}
		leftTableInfo := domain.PartitionedTableInfo{
			TableName:     leftTable.TableName(),
			Base:          false,
			InputFiles:    partitionedFiles(leftOperator.JoinInputs()),
			Parallelism:   e.parallelism,
			ColumnsToRead: leftTable.ColumnNames(),
			KeyColumnIds:  j.LeftKeyColumnIds,
		}
		rightTableInfo := domain.PartitionedTableInfo{
			TableName:     rightTable.TableName(),
			Base:          false,
			InputFiles:    partitionedFiles(rightOperator.JoinInputs()),
			Parallelism:   e.parallelism,
			ColumnsToRead: rightTable.ColumnNames(),
			KeyColumnIds:  j.RightKeyColumnIds,
		}
		numPartition := e.env.Advisor.NumPartitions(leftTable, rightTable, j.JoinEndian)
		joinInputs, err := e.partitionedJoinInputs(joinedTable, parent, numPartition,
			leftTableInfo, rightTableInfo, nil, nil)
		if err != nil {
			return nil, err
		}
		op := operator.NewPartitionedJoinOperator(joinedTable.TableName(),
			join.AlgoPartitioned, nil, nil, joinInputs)
		op.SetSmallChild(leftOperator)
		op.SetLargeChild(rightOperator)
		return op, nil

	default:
		return nil, fmt.Errorf("%w: multi-pipeline join %s uses unsupported algorithm %s",
			ErrInvalidPlan, joinedTable.TableName(), j.JoinAlgo)
	}
}

// completeChainOverBroadcast completes the left pipeline's chain join with
// the right pipeline's output files as the probe side.
func (e *Executor) completeChainOverBroadcast(joinedTable, parent *plan.JoinedTable,
	chain *input.IncompleteChainJoin, rightTable *plan.JoinedTable,
	rightOperator operator.JoinOperator) (operator.JoinOperator, error) {
	j := joinedTable.Join()
	postPartition, postPartitionInfo := e.postPartitionFor(joinedTable, parent)
	joinInfo := domain.JoinInfo{
		JoinType:          j.JoinType,
		SmallColumnAlias:  j.LeftColumnAlias,
		LargeColumnAlias:  j.RightColumnAlias,
		SmallProjection:   j.LeftProjection,
		LargeProjection:   j.RightProjection,
		PostPartition:     postPartition,
		PostPartitionInfo: postPartitionInfo,
	}
	rightInputSplits := broadcastInputSplits(rightOperator.JoinInputs())
	inputs, err := e.completedChainInputs(joinedTable, chain, rightTable, j.RightKeyColumnIds,
		rightInputSplits, joinInfo)
	if err != nil {
		return nil, err
	}
	op := operator.NewSingleStageJoinOperator(joinedTable.TableName(),
		join.AlgoBroadcastChain, inputs)
	op.SetLargeChild(rightOperator)
	return op, nil
}

// promoteToPartitionedChain grafts the left pipeline's chain join onto
// every join input of the right pipeline's partitioned join: each worker
// runs the chain in memory before its partitioned probe. The right
// operator's partition inputs and children carry over.
func (e *Executor) promoteToPartitionedChain(joinedTable, parent *plan.JoinedTable,
	chain *input.IncompleteChainJoin,
	rightOperator operator.JoinOperator) (operator.JoinOperator, error) {
	j := joinedTable.Join()
	rightJoinOperator, ok := rightOperator.(*operator.PartitionedJoinOperator)
	if !ok {
		return nil, fmt.Errorf("%w: join %s has a partitioned right child of unexpected operator kind",
			ErrInvalidPlan, joinedTable.TableName())
	}
	postPartition, postPartitionInfo := e.postPartitionFor(joinedTable, parent)
	lastChainJoinInfo := domain.ChainJoinInfo{
		JoinType:          j.JoinType,
		SmallColumnAlias:  j.LeftColumnAlias,
		LargeColumnAlias:  j.RightColumnAlias,
		KeyColumnIds:      j.RightKeyColumnIds,
		SmallProjection:   j.LeftProjection,
		LargeProjection:   j.RightProjection,
		PostPartition:     postPartition,
		PostPartitionInfo: postPartitionInfo,
	}
	var inputs []input.JoinInput
	for _, in := range rightJoinOperator.JoinInputs() {
		partitionedInput, ok := in.(*input.PartitionedJoinInput)
		if !ok {
			return nil, fmt.Errorf("%w: join %s has a partitioned right child with a non-partitioned join input",
				ErrInvalidPlan, joinedTable.TableName())
		}
		inputs = append(inputs, chain.PromoteToPartitionedChain(partitionedInput, lastChainJoinInfo))
	}
	op := operator.NewPartitionedJoinOperator(joinedTable.TableName(), join.AlgoPartitionedChain,
		rightJoinOperator.SmallPartitionInputs(), rightJoinOperator.LargePartitionInputs(), inputs)
	op.SetSmallChild(rightJoinOperator.SmallChild())
	op.SetLargeChild(rightJoinOperator.LargeChild())
	return op, nil
}
