// Package input defines the worker-input descriptors the compiler emits.
// Each record serializes to JSON and is consumed unchanged by the worker
// runtime; field names are part of the worker contract.
//
// Records are immutable after construction except for the mutations the
// compiler is explicitly allowed to make: completing an incomplete chain
// join (IncompleteChainJoin.Extend / Complete) and redirecting a join
// output for partial aggregation (SetPartialAggregation / RerouteOutput).
package input

import (
	"github.com/hnjylwb/pixels/executor/domain"
)

// ScanInput drives one scan worker.
type ScanInput struct {
	QueryId                   int64                          `json:"queryId"`
	TableInfo                 domain.ScanTableInfo           `json:"tableInfo"`
	ScanProjection            []bool                         `json:"scanProjection"`
	PartialAggregationPresent bool                           `json:"partialAggregationPresent"`
	PartialAggregationInfo    *domain.PartialAggregationInfo `json:"partialAggregationInfo,omitempty"`
	Output                    domain.OutputInfo              `json:"output"`
}

// PartitionInput drives one partition worker: scan, project, and hash
// partition into the output directory.
type PartitionInput struct {
	QueryId       int64                `json:"queryId"`
	TableInfo     domain.ScanTableInfo `json:"tableInfo"`
	Projection    []bool               `json:"projection"`
	PartitionInfo domain.PartitionInfo `json:"partitionInfo"`
	Output        domain.OutputInfo    `json:"output"`
}

// JoinInput is the interface of the four join worker inputs. The compiler
// uses it to wire a child join's outputs into its parent and to attach
// partial aggregation when an aggregation consumes the join directly.
type JoinInput interface {
	// GetOutput returns the join's multi-file output descriptor.
	GetOutput() *domain.MultiOutputInfo
	// SetPartialAggregation makes the join worker partially aggregate its
	// result before writing.
	SetPartialAggregation(info *domain.PartialAggregationInfo)
	// RerouteOutput redirects the join output; used by the aggregation
	// compiler to collect partial-aggregation files.
	RerouteOutput(storageInfo domain.StorageInfo, path string, fileNames []string)
}

// BroadcastJoinInput drives one broadcast-join worker.
type BroadcastJoinInput struct {
	QueryId                   int64                          `json:"queryId"`
	SmallTable                domain.BroadcastTableInfo      `json:"smallTable"`
	LargeTable                domain.BroadcastTableInfo      `json:"largeTable"`
	JoinInfo                  domain.JoinInfo                `json:"joinInfo"`
	PartialAggregationPresent bool                           `json:"partialAggregationPresent"`
	PartialAggregationInfo    *domain.PartialAggregationInfo `json:"partialAggregationInfo,omitempty"`
	Output                    domain.MultiOutputInfo         `json:"output"`
}

func (i *BroadcastJoinInput) GetOutput() *domain.MultiOutputInfo {
	return &i.Output
}

func (i *BroadcastJoinInput) SetPartialAggregation(info *domain.PartialAggregationInfo) {
	i.PartialAggregationPresent = true
	i.PartialAggregationInfo = info
}

func (i *BroadcastJoinInput) RerouteOutput(storageInfo domain.StorageInfo, path string, fileNames []string) {
	i.Output.StorageInfo = storageInfo
	i.Output.Path = path
	i.Output.FileNames = fileNames
}

// BroadcastChainJoinInput drives one chain-join worker: all chain tables
// are joined in memory, then probed with the large table.
type BroadcastChainJoinInput struct {
	QueryId                   int64                          `json:"queryId"`
	ChainTables               []domain.BroadcastTableInfo    `json:"chainTables"`
	ChainJoinInfos            []domain.ChainJoinInfo         `json:"chainJoinInfos"`
	LargeTable                domain.BroadcastTableInfo      `json:"largeTable"`
	JoinInfo                  domain.JoinInfo                `json:"joinInfo"`
	PartialAggregationPresent bool                           `json:"partialAggregationPresent"`
	PartialAggregationInfo    *domain.PartialAggregationInfo `json:"partialAggregationInfo,omitempty"`
	Output                    domain.MultiOutputInfo         `json:"output"`
}

func (i *BroadcastChainJoinInput) GetOutput() *domain.MultiOutputInfo {
	return &i.Output
}

func (i *BroadcastChainJoinInput) SetPartialAggregation(info *domain.PartialAggregationInfo) {
	i.PartialAggregationPresent = true
	i.PartialAggregationInfo = info
}

func (i *BroadcastChainJoinInput) RerouteOutput(storageInfo domain.StorageInfo, path string, fileNames []string) {
	i.Output.StorageInfo = storageInfo
	i.Output.Path = path
	i.Output.FileNames = fileNames
}

// PartitionedJoinInput drives one partitioned-join worker, responsible for
// the hash buckets named in its join info.
type PartitionedJoinInput struct {
	QueryId                   int64                          `json:"queryId"`
	SmallTable                domain.PartitionedTableInfo    `json:"smallTable"`
	LargeTable                domain.PartitionedTableInfo    `json:"largeTable"`
	JoinInfo                  domain.PartitionedJoinInfo     `json:"joinInfo"`
	PartialAggregationPresent bool                           `json:"partialAggregationPresent"`
	PartialAggregationInfo    *domain.PartialAggregationInfo `json:"partialAggregationInfo,omitempty"`
	Output                    domain.MultiOutputInfo         `json:"output"`
}

func (i *PartitionedJoinInput) GetOutput() *domain.MultiOutputInfo {
	return &i.Output
}

func (i *PartitionedJoinInput) SetPartialAggregation(info *domain.PartialAggregationInfo) {
	i.PartialAggregationPresent = true
	i.PartialAggregationInfo = info
}

func (i *PartitionedJoinInput) RerouteOutput(storageInfo domain.StorageInfo, path string, fileNames []string) {
	i.Output.StorageInfo = storageInfo
	i.Output.Path = path
	i.Output.FileNames = fileNames
}

// PartitionedChainJoinInput is a partitioned join preceded by an in-memory
// chain of broadcast joins on the small side.
type PartitionedChainJoinInput struct {
	QueryId                   int64                          `json:"queryId"`
	ChainTables               []domain.BroadcastTableInfo    `json:"chainTables"`
	ChainJoinInfos            []domain.ChainJoinInfo         `json:"chainJoinInfos"`
	SmallTable                domain.PartitionedTableInfo    `json:"smallTable"`
	LargeTable                domain.PartitionedTableInfo    `json:"largeTable"`
	JoinInfo                  domain.PartitionedJoinInfo     `json:"joinInfo"`
	PartialAggregationPresent bool                           `json:"partialAggregationPresent"`
	PartialAggregationInfo    *domain.PartialAggregationInfo `json:"partialAggregationInfo,omitempty"`
	Output                    domain.MultiOutputInfo         `json:"output"`
}

func (i *PartitionedChainJoinInput) GetOutput() *domain.MultiOutputInfo {
	return &i.Output
}

func (i *PartitionedChainJoinInput) SetPartialAggregation(info *domain.PartialAggregationInfo) {
	i.PartialAggregationPresent = true
	i.PartialAggregationInfo = info
}

func (i *PartitionedChainJoinInput) RerouteOutput(storageInfo domain.StorageInfo, path string, fileNames []string) {
	i.Output.StorageInfo = storageInfo
	i.Output.Path = path
	i.Output.FileNames = fileNames
}

// AggregationInput drives one aggregation worker over a set of partial
// result files.
type AggregationInput struct {
	QueryId                  int64                 `json:"queryId"`
	InputFiles               []string              `json:"inputFiles"`
	InputStorage             domain.StorageInfo    `json:"inputStorage"`
	GroupKeyColumnNames      []string              `json:"groupKeyColumnNames"`
	GroupKeyColumnProjection []bool                `json:"groupKeyColumnProjection"`
	ResultColumnNames        []string              `json:"resultColumnNames"`
	ResultColumnTypes        []string              `json:"resultColumnTypes"`
	FunctionTypes            []domain.FunctionType `json:"functionTypes"`
	Parallelism              int                   `json:"parallelism"`
	Output                   domain.OutputInfo     `json:"output"`
}
