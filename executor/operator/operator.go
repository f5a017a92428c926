// Package operator defines the operator tree the compiler returns. An
// operator owns the worker inputs of one stage, in submission order, plus
// the child operators that must be submitted first.
package operator

import (
	"github.com/hnjylwb/pixels/executor/input"
	"github.com/hnjylwb/pixels/executor/join"
)

// Operator is a node of the execution DAG.
type Operator interface {
	Name() string
}

// JoinOperator is an operator producing join outputs.
type JoinOperator interface {
	Operator
	JoinAlgo() join.Algorithm
	// JoinInputs returns the worker inputs in submission order.
	JoinInputs() []input.JoinInput
	SmallChild() JoinOperator
	LargeChild() JoinOperator
	// IncompleteChain returns the chain join under construction, or nil.
	// An operator carrying one has no join inputs yet; the parent join
	// completes it.
	IncompleteChain() *input.IncompleteChainJoin
}

// SingleStageJoinOperator is a broadcast or broadcast-chain join stage.
type SingleStageJoinOperator struct {
	name       string
	joinAlgo   join.Algorithm
	joinInputs []input.JoinInput
	incomplete *input.IncompleteChainJoin
	smallChild JoinOperator
	largeChild JoinOperator
}

// NewSingleStageJoinOperator creates a completed single-stage join.
func NewSingleStageJoinOperator(name string, joinAlgo join.Algorithm,
	joinInputs []input.JoinInput) *SingleStageJoinOperator {
	return &SingleStageJoinOperator{name: name, joinAlgo: joinAlgo, joinInputs: joinInputs}
}

// NewIncompleteChainOperator creates the transient operator holding a chain
// join under construction.
func NewIncompleteChainOperator(name string, chain *input.IncompleteChainJoin) *SingleStageJoinOperator {
	return &SingleStageJoinOperator{name: name, joinAlgo: join.AlgoBroadcastChain, incomplete: chain}
}

func (op *SingleStageJoinOperator) Name() string                  { return op.name }
func (op *SingleStageJoinOperator) JoinAlgo() join.Algorithm      { return op.joinAlgo }
func (op *SingleStageJoinOperator) JoinInputs() []input.JoinInput { return op.joinInputs }
func (op *SingleStageJoinOperator) SmallChild() JoinOperator      { return op.smallChild }
func (op *SingleStageJoinOperator) LargeChild() JoinOperator      { return op.largeChild }

func (op *SingleStageJoinOperator) IncompleteChain() *input.IncompleteChainJoin {
	return op.incomplete
}

// SetSmallChild records the operator producing the small side.
func (op *SingleStageJoinOperator) SetSmallChild(child JoinOperator) {
	op.smallChild = child
}

// SetLargeChild records the operator producing the large side.
func (op *SingleStageJoinOperator) SetLargeChild(child JoinOperator) {
	op.largeChild = child
}

// PartitionedJoinOperator is a partitioned or partitioned-chain join stage.
// Besides the join inputs it owns the partition workers of the sides that
// are not pre-partitioned; a nil side is already partitioned by the child.
type PartitionedJoinOperator struct {
	name                 string
	joinAlgo             join.Algorithm
	smallPartitionInputs []*input.PartitionInput
	largePartitionInputs []*input.PartitionInput
	joinInputs           []input.JoinInput
	smallChild           JoinOperator
	largeChild           JoinOperator
}

// NewPartitionedJoinOperator creates a partitioned join stage.
func NewPartitionedJoinOperator(name string, joinAlgo join.Algorithm,
	smallPartitionInputs, largePartitionInputs []*input.PartitionInput,
	joinInputs []input.JoinInput) *PartitionedJoinOperator {
	return &PartitionedJoinOperator{
		name:                 name,
		joinAlgo:             joinAlgo,
		smallPartitionInputs: smallPartitionInputs,
		largePartitionInputs: largePartitionInputs,
		joinInputs:           joinInputs,
	}
}

func (op *PartitionedJoinOperator) Name() string                  { return op.name }
func (op *PartitionedJoinOperator) JoinAlgo() join.Algorithm      { return op.joinAlgo }
func (op *PartitionedJoinOperator) JoinInputs() []input.JoinInput { return op.joinInputs }
func (op *PartitionedJoinOperator) SmallChild() JoinOperator      { return op.smallChild }
func (op *PartitionedJoinOperator) LargeChild() JoinOperator      { return op.largeChild }

func (op *PartitionedJoinOperator) IncompleteChain() *input.IncompleteChainJoin {
	return nil
}

// SmallPartitionInputs returns the partition workers of the small side, or
// nil when the small side arrives pre-partitioned.
func (op *PartitionedJoinOperator) SmallPartitionInputs() []*input.PartitionInput {
	return op.smallPartitionInputs
}

// LargePartitionInputs returns the partition workers of the large side, or
// nil when the large side arrives pre-partitioned.
func (op *PartitionedJoinOperator) LargePartitionInputs() []*input.PartitionInput {
	return op.largePartitionInputs
}

// SetSmallChild records the operator producing the small side.
func (op *PartitionedJoinOperator) SetSmallChild(child JoinOperator) {
	op.smallChild = child
}

// SetLargeChild records the operator producing the large side.
func (op *PartitionedJoinOperator) SetLargeChild(child JoinOperator) {
	op.largeChild = child
}

// AggregationOperator is the aggregation stage: scan producers (base-table
// origin), optional pre-aggregation workers, and the final aggregation.
type AggregationOperator struct {
	name           string
	finalAggrInput *input.AggregationInput
	preAggrInputs  []*input.AggregationInput
	scanInputs     []*input.ScanInput
	child          JoinOperator
}

// NewAggregationOperator creates an aggregation stage.
func NewAggregationOperator(name string, finalAggrInput *input.AggregationInput,
	preAggrInputs []*input.AggregationInput, scanInputs []*input.ScanInput) *AggregationOperator {
	return &AggregationOperator{
		name:           name,
		finalAggrInput: finalAggrInput,
		preAggrInputs:  preAggrInputs,
		scanInputs:     scanInputs,
	}
}

func (op *AggregationOperator) Name() string { return op.name }

// FinalAggrInput returns the final aggregation worker input.
func (op *AggregationOperator) FinalAggrInput() *input.AggregationInput { return op.finalAggrInput }

// PreAggrInputs returns the pre-aggregation worker inputs, if any.
func (op *AggregationOperator) PreAggrInputs() []*input.AggregationInput { return op.preAggrInputs }

// ScanInputs returns the partial-aggregation scan inputs of a base-table
// origin; empty for a joined origin.
func (op *AggregationOperator) ScanInputs() []*input.ScanInput { return op.scanInputs }

// Child returns the join operator producing the origin table, or nil.
func (op *AggregationOperator) Child() JoinOperator { return op.child }

// SetChild records the join operator producing the origin table.
func (op *AggregationOperator) SetChild(child JoinOperator) {
	op.child = child
}
