package executor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hnjylwb/pixels/executor/domain"
	"github.com/hnjylwb/pixels/executor/input"
	"github.com/hnjylwb/pixels/executor/join"
	"github.com/hnjylwb/pixels/executor/operator"
	"github.com/hnjylwb/pixels/executor/plan"
)

// joinOperator compiles one node of a single left-deep pipeline of joins.
// Every node of a pipeline has a base table on its right child, so a joined
// child is always the left child of its parent. parent is the pipeline node
// above this one, nil at the pipeline root; it decides chain-join fusion
// and post-partitioning.
func (e *Executor) joinOperator(ctx context.Context, joinedTable *plan.JoinedTable,
	parent *plan.JoinedTable) (operator.JoinOperator, error) {
	j := joinedTable.Join()
	if j.LeftTable.TableType() == plan.TypeJoined && j.RightTable.TableType() == plan.TypeJoined {
		return e.multiPipelineJoinOperator(ctx, joinedTable, parent)
	}
	leftTable := j.LeftTable
	rightTable, ok := j.RightTable.(*plan.BaseTable)
	if !ok {
		return nil, fmt.Errorf("%w: right child of single-pipeline join %s is not a base table",
			ErrInvalidPlan, joinedTable.TableName())
	}

	rightInputSplits, err := e.inputSplits(ctx, rightTable)
	if err != nil {
		return nil, err
	}

	var leftInputSplits []domain.InputSplit
	var leftPartitionedFiles []string
	var childOperator operator.JoinOperator

	if base, ok := leftTable.(*plan.BaseTable); ok {
		leftInputSplits, err = e.inputSplits(ctx, base)
		if err != nil {
			return nil, err
		}
		// A broadcast join under a small-left broadcast parent starts a
		// chain: both sides stay in memory for the parent to extend.
		if j.JoinAlgo == join.AlgoBroadcast && parent != nil &&
			parent.Join().JoinAlgo == join.AlgoBroadcast &&
			parent.Join().JoinEndian == join.SmallLeft {
			return e.initiateChainJoin(joinedTable, parent, leftInputSplits, rightInputSplits)
		}
	} else {
		childOperator, err = e.joinOperator(ctx, leftTable.(*plan.JoinedTable), joinedTable)
		if err != nil {
			return nil, err
		}
		if chain := childOperator.IncompleteChain(); chain != nil {
			if j.JoinAlgo != join.AlgoBroadcast || j.JoinEndian != join.SmallLeft {
				return nil, fmt.Errorf("%w: join %s received an incomplete chain join but is not a small-left broadcast join",
					ErrInvalidPlan, joinedTable.TableName())
			}
			if parent != nil && parent.Join().JoinAlgo == join.AlgoBroadcast &&
				parent.Join().JoinEndian == join.SmallLeft {
				// The parent broadcasts as well: extend the chain with the
				// current right table and keep the same operator.
				rightTableInfo, err := broadcastTableInfo(rightTable, rightInputSplits, j.RightKeyColumnIds)
				if err != nil {
					return nil, err
				}
				chain.Extend(rightTableInfo, domain.ChainJoinInfo{
					JoinType:         j.JoinType,
					SmallColumnAlias: j.LeftColumnAlias,
					LargeColumnAlias: j.RightColumnAlias,
					KeyColumnIds:     parent.Join().LeftKeyColumnIds,
					SmallProjection:  j.LeftProjection,
					LargeProjection:  j.RightProjection,
				})
				return childOperator, nil
			}
			// The parent does not broadcast: the chain ends here, probed by
			// the current right table.
			return e.completeChainJoin(joinedTable, parent, chain, leftTable, rightTable, rightInputSplits)
		}
		// Generic path: the child's outputs feed this join.
		switch j.JoinAlgo {
		case join.AlgoBroadcast:
			leftInputSplits = broadcastInputSplits(childOperator.JoinInputs())
		case join.AlgoPartitioned:
			leftPartitionedFiles = partitionedFiles(childOperator.JoinInputs())
		default:
			return nil, fmt.Errorf("%w: join %s uses unsupported algorithm %s",
				ErrInvalidPlan, joinedTable.TableName(), j.JoinAlgo)
		}
	}

	switch j.JoinAlgo {
	case join.AlgoBroadcast:
		return e.broadcastJoinOperator(joinedTable, parent, childOperator,
			leftTable, rightTable, leftInputSplits, rightInputSplits)
	case join.AlgoPartitioned:
		return e.partitionedJoinOperator(joinedTable, parent, childOperator,
			leftTable, rightTable, leftInputSplits, rightInputSplits, leftPartitionedFiles)
	default:
		return nil, fmt.Errorf("%w: join %s uses unsupported algorithm %s",
			ErrInvalidPlan, joinedTable.TableName(), j.JoinAlgo)
	}
}

// initiateChainJoin builds the incomplete chain join of the first broadcast
// join in a chain: its two base tables become the first chain tables, and
// the single chain join info describes their join keyed by the parent's
// left key columns. The chain ordering honors the endian, flipping the join
// type when the large side is on the left.
func (e *Executor) initiateChainJoin(joinedTable, parent *plan.JoinedTable,
	leftInputSplits, rightInputSplits []domain.InputSplit) (operator.JoinOperator, error) {
	j := joinedTable.Join()
	leftTableInfo, err := broadcastTableInfo(j.LeftTable, leftInputSplits, j.LeftKeyColumnIds)
	if err != nil {
		return nil, err
	}
	rightTableInfo, err := broadcastTableInfo(j.RightTable, rightInputSplits, j.RightKeyColumnIds)
	if err != nil {
		return nil, err
	}
	var chain *input.IncompleteChainJoin
	if j.JoinEndian == join.SmallLeft {
		chain = input.NewIncompleteChainJoin(e.queryId, leftTableInfo, rightTableInfo,
			domain.ChainJoinInfo{
				JoinType:         j.JoinType,
				SmallColumnAlias: j.LeftColumnAlias,
				LargeColumnAlias: j.RightColumnAlias,
				KeyColumnIds:     parent.Join().LeftKeyColumnIds,
				SmallProjection:  j.LeftProjection,
				LargeProjection:  j.RightProjection,
			})
	} else {
		chain = input.NewIncompleteChainJoin(e.queryId, rightTableInfo, leftTableInfo,
			domain.ChainJoinInfo{
				JoinType:         j.JoinType.Flip(),
				SmallColumnAlias: j.RightColumnAlias,
				LargeColumnAlias: j.LeftColumnAlias,
				KeyColumnIds:     parent.Join().LeftKeyColumnIds,
				SmallProjection:  j.RightProjection,
				LargeProjection:  j.LeftProjection,
			})
	}
	return operator.NewIncompleteChainOperator(joinedTable.TableName(), chain), nil
}

// completeChainJoin turns an incomplete chain join into one completed
// chain-join input per worker batch of the probe side's splits.
func (e *Executor) completeChainJoin(joinedTable, parent *plan.JoinedTable,
	chain *input.IncompleteChainJoin, leftTable plan.Table, rightTable *plan.BaseTable,
	rightInputSplits []domain.InputSplit) (operator.JoinOperator, error) {
	j := joinedTable.Join()
	postPartition, postPartitionInfo := e.postPartitionFor(joinedTable, parent)
	if postPartition {
		// Every worker of the partitioned parent reads this join's
		// outputs, so larger splits pay off.
		rightInputSplits = e.adjustInputSplitsForBroadcastJoin(leftTable, rightTable, rightInputSplits)
	}
	joinInfo := domain.JoinInfo{
		JoinType:          j.JoinType,
		SmallColumnAlias:  j.LeftColumnAlias,
		LargeColumnAlias:  j.RightColumnAlias,
		SmallProjection:   j.LeftProjection,
		LargeProjection:   j.RightProjection,
		PostPartition:     postPartition,
		PostPartitionInfo: postPartitionInfo,
	}
	inputs, err := e.completedChainInputs(joinedTable, chain, rightTable, j.RightKeyColumnIds,
		rightInputSplits, joinInfo)
	if err != nil {
		return nil, err
	}
	return operator.NewSingleStageJoinOperator(joinedTable.TableName(),
		join.AlgoBroadcastChain, inputs), nil
}

// completedChainInputs emits one completed chain-join input per batch of
// probe-side splits, each writing a single `<outputId>/join` file under the
// joined table's intermediate directory. The probe join is also recorded as
// the final chain step, keyed on the probe's key columns, so a completed
// input carries as many chain join infos as chain tables.
func (e *Executor) completedChainInputs(joinedTable *plan.JoinedTable,
	chain *input.IncompleteChainJoin, probeTable plan.Table, probeKeyColumnIds []int,
	probeInputSplits []domain.InputSplit, joinInfo domain.JoinInfo) ([]input.JoinInput, error) {
	lastInfo := domain.ChainJoinInfo{
		JoinType:          joinInfo.JoinType,
		SmallColumnAlias:  joinInfo.SmallColumnAlias,
		LargeColumnAlias:  joinInfo.LargeColumnAlias,
		KeyColumnIds:      probeKeyColumnIds,
		SmallProjection:   joinInfo.SmallProjection,
		LargeProjection:   joinInfo.LargeProjection,
		PostPartition:     joinInfo.PostPartition,
		PostPartitionInfo: joinInfo.PostPartitionInfo,
	}
	var inputs []input.JoinInput
	outputId := 0
	for _, r := range batches(len(probeInputSplits), e.parallelism) {
		largeTableInfo, err := broadcastTableInfo(probeTable, probeInputSplits[r[0]:r[1]], probeKeyColumnIds)
		if err != nil {
			return nil, err
		}
		output := domain.MultiOutputInfo{
			Path:        e.intermediateBase(joinedTable),
			StorageInfo: e.intermediateStorageInfo(),
			Encoding:    true,
			FileNames:   []string{strconv.Itoa(outputId) + "/join"},
		}
		outputId++
		inputs = append(inputs, chain.Complete(largeTableInfo, lastInfo, joinInfo, output))
	}
	return inputs, nil
}

// broadcastJoinOperator emits the plain broadcast join: the small side is
// replicated to one worker per batch of large-side splits.
func (e *Executor) broadcastJoinOperator(joinedTable, parent *plan.JoinedTable,
	childOperator operator.JoinOperator, leftTable plan.Table, rightTable *plan.BaseTable,
	leftInputSplits, rightInputSplits []domain.InputSplit) (operator.JoinOperator, error) {
	j := joinedTable.Join()
	postPartition, postPartitionInfo := e.postPartitionFor(joinedTable, parent)

	internalParallelism := e.parallelism
	if leftBase, ok := leftTable.(*plan.BaseTable); ok &&
		leftBase.Filter().IsEmpty() && rightTable.Filter().IsEmpty() {
		// Unfiltered scans dominate the join latency; more, smaller
		// workers get the result written sooner.
		internalParallelism = 2
	}

	// When this join is the left child of a partitioned or a small-left
	// broadcast parent, every parent worker reads its outputs, so the large
	// side's splits may be re-packed.
	broadcastReadByAllParentWorkers := parent != nil &&
		parent.Join().LeftTable == plan.Table(joinedTable) &&
		(parent.Join().JoinAlgo == join.AlgoPartitioned ||
			(parent.Join().JoinAlgo == join.AlgoBroadcast &&
				parent.Join().JoinEndian == join.SmallLeft))

	var smallTable plan.Table
	var smallInputSplits, largeInputSplits []domain.InputSplit
	var smallKeyColumnIds, largeKeyColumnIds []int
	var largeTable plan.Table
	var joinInfo domain.JoinInfo
	if j.JoinEndian == join.SmallLeft {
		smallTable, largeTable = leftTable, rightTable
		smallInputSplits, largeInputSplits = leftInputSplits, rightInputSplits
		smallKeyColumnIds, largeKeyColumnIds = j.LeftKeyColumnIds, j.RightKeyColumnIds
		joinInfo = domain.JoinInfo{
			JoinType:          j.JoinType,
			SmallColumnAlias:  j.LeftColumnAlias,
			LargeColumnAlias:  j.RightColumnAlias,
			SmallProjection:   j.LeftProjection,
			LargeProjection:   j.RightProjection,
			PostPartition:     postPartition,
			PostPartitionInfo: postPartitionInfo,
		}
	} else {
		smallTable, largeTable = rightTable, leftTable
		smallInputSplits, largeInputSplits = rightInputSplits, leftInputSplits
		smallKeyColumnIds, largeKeyColumnIds = j.RightKeyColumnIds, j.LeftKeyColumnIds
		joinInfo = domain.JoinInfo{
			JoinType:          j.JoinType.Flip(),
			SmallColumnAlias:  j.RightColumnAlias,
			LargeColumnAlias:  j.LeftColumnAlias,
			SmallProjection:   j.RightProjection,
			LargeProjection:   j.LeftProjection,
			PostPartition:     postPartition,
			PostPartitionInfo: postPartitionInfo,
		}
	}
	if broadcastReadByAllParentWorkers {
		largeInputSplits = e.adjustInputSplitsForBroadcastJoin(smallTable, largeTable, largeInputSplits)
	}

	smallTableInfo, err := broadcastTableInfo(smallTable, smallInputSplits, smallKeyColumnIds)
	if err != nil {
		return nil, err
	}
	var inputs []input.JoinInput
	outputId := 0
	for _, r := range batches(len(largeInputSplits), internalParallelism) {
		largeTableInfo, err := broadcastTableInfo(largeTable, largeInputSplits[r[0]:r[1]], largeKeyColumnIds)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, &input.BroadcastJoinInput{
			QueryId:    e.queryId,
			SmallTable: smallTableInfo,
			LargeTable: largeTableInfo,
			JoinInfo:   joinInfo,
			Output: domain.MultiOutputInfo{
				Path:        e.intermediateBase(joinedTable),
				StorageInfo: e.intermediateStorageInfo(),
				Encoding:    true,
				FileNames:   []string{strconv.Itoa(outputId) + "/join"},
			},
		})
		outputId++
	}

	op := operator.NewSingleStageJoinOperator(joinedTable.TableName(), join.AlgoBroadcast, inputs)
	if j.JoinEndian == join.SmallLeft {
		op.SetSmallChild(childOperator)
	} else {
		op.SetLargeChild(childOperator)
	}
	return op, nil
}

// partitionedJoinOperator emits a single-pipeline partitioned join. A
// joined left child arrives pre-partitioned through post-partitioning, so
// only the right base table gets partition workers; two base children are
// partitioned symmetrically.
func (e *Executor) partitionedJoinOperator(joinedTable, parent *plan.JoinedTable,
	childOperator operator.JoinOperator, leftTable plan.Table, rightTable *plan.BaseTable,
	leftInputSplits, rightInputSplits []domain.InputSplit,
	leftPartitionedFiles []string) (operator.JoinOperator, error) {
	j := joinedTable.Join()
	numPartition := e.env.Advisor.NumPartitions(leftTable, rightTable, j.JoinEndian)

	if childOperator != nil {
		leftTableInfo := domain.PartitionedTableInfo{
			TableName:     leftTable.TableName(),
			Base:          false,
			InputFiles:    leftPartitionedFiles,
			Parallelism:   e.parallelism,
			ColumnsToRead: leftTable.ColumnNames(),
			KeyColumnIds:  j.LeftKeyColumnIds,
		}
		rightPartitionProjection := partitionProjection(rightTable, j.RightProjection)
		rightPartitionInputs, err := e.partitionInputs(rightTable, rightInputSplits,
			j.RightKeyColumnIds, rightPartitionProjection, numPartition,
			e.intermediateBase(joinedTable)+rightTable.TableName()+"/")
		if err != nil {
			return nil, err
		}
		rightTableInfo, err := e.partitionedTableInfo(rightTable, j.RightKeyColumnIds,
			rightPartitionInputs, rightPartitionProjection)
		if err != nil {
			return nil, err
		}
		joinInputs, err := e.partitionedJoinInputs(joinedTable, parent, numPartition,
			leftTableInfo, rightTableInfo, nil, rightPartitionProjection)
		if err != nil {
			return nil, err
		}
		var op *operator.PartitionedJoinOperator
		if j.JoinEndian == join.SmallLeft {
			op = operator.NewPartitionedJoinOperator(joinedTable.TableName(),
				join.AlgoPartitioned, nil, rightPartitionInputs, joinInputs)
			op.SetSmallChild(childOperator)
		} else {
			op = operator.NewPartitionedJoinOperator(joinedTable.TableName(),
				join.AlgoPartitioned, rightPartitionInputs, nil, joinInputs)
			op.SetLargeChild(childOperator)
		}
		return op, nil
	}

	leftPartitionProjection := partitionProjection(leftTable, j.LeftProjection)
	leftPartitionInputs, err := e.partitionInputs(leftTable, leftInputSplits,
		j.LeftKeyColumnIds, leftPartitionProjection, numPartition,
		e.intermediateBase(joinedTable)+leftTable.TableName()+"/")
	if err != nil {
		return nil, err
	}
	leftTableInfo, err := e.partitionedTableInfo(leftTable, j.LeftKeyColumnIds,
		leftPartitionInputs, leftPartitionProjection)
	if err != nil {
		return nil, err
	}

	rightPartitionProjection := partitionProjection(rightTable, j.RightProjection)
	rightPartitionInputs, err := e.partitionInputs(rightTable, rightInputSplits,
		j.RightKeyColumnIds, rightPartitionProjection, numPartition,
		e.intermediateBase(joinedTable)+rightTable.TableName()+"/")
	if err != nil {
		return nil, err
	}
	rightTableInfo, err := e.partitionedTableInfo(rightTable, j.RightKeyColumnIds,
		rightPartitionInputs, rightPartitionProjection)
	if err != nil {
		return nil, err
	}

	joinInputs, err := e.partitionedJoinInputs(joinedTable, parent, numPartition,
		leftTableInfo, rightTableInfo, leftPartitionProjection, rightPartitionProjection)
	if err != nil {
		return nil, err
	}
	if j.JoinEndian == join.SmallLeft {
		return operator.NewPartitionedJoinOperator(joinedTable.TableName(),
			join.AlgoPartitioned, leftPartitionInputs, rightPartitionInputs, joinInputs), nil
	}
	return operator.NewPartitionedJoinOperator(joinedTable.TableName(),
		join.AlgoPartitioned, rightPartitionInputs, leftPartitionInputs, joinInputs), nil
}

// postPartitionFor decides post-partitioning: a join under a partitioned
// parent also hash-partitions its result on the parent's key columns of
// the side this join feeds, with the parent's fan-out.
func (e *Executor) postPartitionFor(joinedTable, parent *plan.JoinedTable) (bool, *domain.PartitionInfo) {
	if parent == nil || parent.Join().JoinAlgo != join.AlgoPartitioned {
		return false, nil
	}
	// The parent's own fan-out, not this join's.
	numPartition := e.env.Advisor.NumPartitions(parent.Join().LeftTable,
		parent.Join().RightTable, parent.Join().JoinEndian)
	keyColumnIds := parent.Join().RightKeyColumnIds
	if parent.Join().LeftTable == plan.Table(joinedTable) {
		keyColumnIds = parent.Join().LeftKeyColumnIds
	}
	return true, &domain.PartitionInfo{KeyColumnIds: keyColumnIds, NumPartition: numPartition}
}

// partitionedJoinInputs emits one partitioned-join input per hash bucket.
// Left and full outer joins write a second file with the unmatched rows of
// the small side.
func (e *Executor) partitionedJoinInputs(joinedTable, parent *plan.JoinedTable,
	numPartition int, leftTableInfo, rightTableInfo domain.PartitionedTableInfo,
	leftPartitionProjection, rightPartitionProjection []bool) ([]input.JoinInput, error) {
	j := joinedTable.Join()
	postPartition, postPartitionInfo := e.postPartitionFor(joinedTable, parent)

	leftProjection := j.LeftProjection
	if leftPartitionProjection != nil {
		leftProjection = rewriteProjection(j.LeftProjection, leftPartitionProjection)
	}
	rightProjection := j.RightProjection
	if rightPartitionProjection != nil {
		rightProjection = rewriteProjection(j.RightProjection, rightPartitionProjection)
	}

	var inputs []input.JoinInput
	for i := 0; i < numPartition; i++ {
		fileNames := []string{strconv.Itoa(i) + "/join"}
		if j.JoinType == join.TypeEquiLeft || j.JoinType == join.TypeEquiFull {
			fileNames = append(fileNames, strconv.Itoa(i)+"/join_left")
		}
		output := domain.MultiOutputInfo{
			Path:        e.intermediateBase(joinedTable),
			StorageInfo: e.intermediateStorageInfo(),
			Encoding:    true,
			FileNames:   fileNames,
		}
		var joinInfo domain.PartitionedJoinInfo
		var small, large domain.PartitionedTableInfo
		if j.JoinEndian == join.SmallLeft {
			joinInfo = domain.PartitionedJoinInfo{
				JoinInfo: domain.JoinInfo{
					JoinType:          j.JoinType,
					SmallColumnAlias:  j.LeftColumnAlias,
					LargeColumnAlias:  j.RightColumnAlias,
					SmallProjection:   leftProjection,
					LargeProjection:   rightProjection,
					PostPartition:     postPartition,
					PostPartitionInfo: postPartitionInfo,
				},
				NumPartition: numPartition,
				HashValues:   []int{i},
			}
			small, large = leftTableInfo, rightTableInfo
		} else {
			joinInfo = domain.PartitionedJoinInfo{
				JoinInfo: domain.JoinInfo{
					JoinType:          j.JoinType.Flip(),
					SmallColumnAlias:  j.RightColumnAlias,
					LargeColumnAlias:  j.LeftColumnAlias,
					SmallProjection:   rightProjection,
					LargeProjection:   leftProjection,
					PostPartition:     postPartition,
					PostPartitionInfo: postPartitionInfo,
				},
				NumPartition: numPartition,
				HashValues:   []int{i},
			}
			small, large = rightTableInfo, leftTableInfo
		}
		inputs = append(inputs, &input.PartitionedJoinInput{
			QueryId:    e.queryId,
			SmallTable: small,
			LargeTable: large,
			JoinInfo:   joinInfo,
			Output:     output,
		})
	}
	return inputs, nil
}
