package input

import (
	"github.com/hnjylwb/pixels/executor/domain"
)

// IncompleteChainJoin is a chain join still under construction: the chain
// tables and the joins between them are known, but the large probe side is
// not. It is the only transient state the compiler builds; it must be
// completed before an operator reaches the root.
//
// While incomplete, chainJoinInfos has one entry fewer than chainTables:
// the last chain table's join to the probe side is only known at
// completion.
type IncompleteChainJoin struct {
	queryId        int64
	chainTables    []domain.BroadcastTableInfo
	chainJoinInfos []domain.ChainJoinInfo
}

// NewIncompleteChainJoin starts a chain from the two small tables of the
// first broadcast join and the info joining their result to the next table.
func NewIncompleteChainJoin(queryId int64, first, second domain.BroadcastTableInfo,
	info domain.ChainJoinInfo) *IncompleteChainJoin {
	return &IncompleteChainJoin{
		queryId:        queryId,
		chainTables:    []domain.BroadcastTableInfo{first, second},
		chainJoinInfos: []domain.ChainJoinInfo{info},
	}
}

// Extend appends the next chain table and the info joining the accumulated
// result to the one after it.
func (c *IncompleteChainJoin) Extend(table domain.BroadcastTableInfo, info domain.ChainJoinInfo) {
	c.chainTables = append(c.chainTables, table)
	c.chainJoinInfos = append(c.chainJoinInfos, info)
}

// NumTables returns the number of chain tables accumulated so far.
func (c *IncompleteChainJoin) NumTables() int {
	return len(c.chainTables)
}

// ChainTables returns a copy of the accumulated chain tables.
func (c *IncompleteChainJoin) ChainTables() []domain.BroadcastTableInfo {
	out := make([]domain.BroadcastTableInfo, len(c.chainTables))
	copy(out, c.chainTables)
	return out
}

// ChainJoinInfos returns a copy of the accumulated chain join infos.
func (c *IncompleteChainJoin) ChainJoinInfos() []domain.ChainJoinInfo {
	out := make([]domain.ChainJoinInfo, len(c.chainJoinInfos))
	copy(out, c.chainJoinInfos)
	return out
}

// Complete produces a runnable chain-join input by attaching the large
// probe side and the final join. lastInfo describes the probe join as the
// final chain step, bringing chainJoinInfos to the same length as
// chainTables. The incomplete state is copied, so one incomplete chain
// completes once per worker batch without aliasing.
func (c *IncompleteChainJoin) Complete(largeTable domain.BroadcastTableInfo,
	lastInfo domain.ChainJoinInfo, joinInfo domain.JoinInfo,
	output domain.MultiOutputInfo) *BroadcastChainJoinInput {
	return &BroadcastChainJoinInput{
		QueryId:        c.queryId,
		ChainTables:    c.ChainTables(),
		ChainJoinInfos: append(c.ChainJoinInfos(), lastInfo),
		LargeTable:     largeTable,
		JoinInfo:       joinInfo,
		Output:         output,
	}
}

// PromoteToPartitionedChain grafts the chain onto a partitioned join input,
// producing a partitioned chain join that runs the chain before the
// partitioned probe. lastInfo joins the chain result to the partitioned
// small side.
func (c *IncompleteChainJoin) PromoteToPartitionedChain(base *PartitionedJoinInput,
	lastInfo domain.ChainJoinInfo) *PartitionedChainJoinInput {
	infos := append(c.ChainJoinInfos(), lastInfo)
	return &PartitionedChainJoinInput{
		QueryId:        base.QueryId,
		ChainTables:    c.ChainTables(),
		ChainJoinInfos: infos,
		SmallTable:     base.SmallTable,
		LargeTable:     base.LargeTable,
		JoinInfo:       base.JoinInfo,
		Output:         base.Output,
	}
}
