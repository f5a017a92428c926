// Package domain holds the building blocks shared by the worker-input
// descriptors. Everything here crosses the wire to the serverless workers,
// so field names are part of the worker contract and must not change.
package domain

import (
	"github.com/hnjylwb/pixels/executor/join"
	"github.com/hnjylwb/pixels/storage"
)

// InputInfo identifies a contiguous slice of row groups in one file.
// RowGroupCount -1 means to the end of the file.
type InputInfo struct {
	Path               string `json:"path"`
	StartRowGroupIndex int    `json:"startRowGroupIndex"`
	RowGroupCount      int    `json:"rowGroupCount"`
}

// InputSplit is the unit of work of one worker-thread slot: an ordered list
// of InputInfo read sequentially.
type InputSplit struct {
	InputInfos []InputInfo `json:"inputInfos"`
}

// NumInputInfos returns the number of files slices in the split.
func (s InputSplit) NumInputInfos() int {
	return len(s.InputInfos)
}

// StorageInfo tells a worker which storage backend to use and how to reach
// it. Endpoint and credentials are empty for the process-wide configured
// intermediate storage.
type StorageInfo struct {
	Scheme    storage.Scheme `json:"scheme"`
	Endpoint  string         `json:"endpoint,omitempty"`
	AccessKey string         `json:"accessKey,omitempty"`
	SecretKey string         `json:"secretKey,omitempty"`
}

// OutputInfo describes a single output file of a worker.
type OutputInfo struct {
	Path        string      `json:"path"`
	StorageInfo StorageInfo `json:"storageInfo"`
	Encoding    bool        `json:"encoding"`
}

// MultiOutputInfo describes a directory of output files of a worker.
type MultiOutputInfo struct {
	Path        string      `json:"path"`
	StorageInfo StorageInfo `json:"storageInfo"`
	Encoding    bool        `json:"encoding"`
	FileNames   []string    `json:"fileNames"`
}

// ScanTableInfo describes the table read by a scan or partition worker.
type ScanTableInfo struct {
	TableName     string       `json:"tableName"`
	InputSplits   []InputSplit `json:"inputSplits"`
	ColumnsToRead []string     `json:"columnsToRead"`
	// Filter is the JSON-serialized TableScanFilter.
	Filter string `json:"filter"`
}

// BroadcastTableInfo describes one side of a broadcast join.
type BroadcastTableInfo struct {
	TableName     string       `json:"tableName"`
	Base          bool         `json:"base"`
	InputSplits   []InputSplit `json:"inputSplits"`
	ColumnsToRead []string     `json:"columnsToRead"`
	KeyColumnIds  []int        `json:"keyColumnIds"`
	Filter        string       `json:"filter"`
}

// PartitionedTableInfo describes one pre-partitioned side of a partitioned
// join.
type PartitionedTableInfo struct {
	TableName     string   `json:"tableName"`
	Base          bool     `json:"base"`
	InputFiles    []string `json:"inputFiles"`
	Parallelism   int      `json:"parallelism"`
	ColumnsToRead []string `json:"columnsToRead"`
	KeyColumnIds  []int    `json:"keyColumnIds"`
}

// PartitionInfo is a hash-partition spec: partition on the key columns into
// NumPartition buckets.
type PartitionInfo struct {
	KeyColumnIds []int `json:"keyColumnIds"`
	NumPartition int   `json:"numPartition"`
}

// JoinInfo carries the join semantics a join worker applies. The small side
// is always first; the compiler flips the join type and swaps the aliases
// and projections when the plan's endian requires it.
type JoinInfo struct {
	JoinType          join.Type      `json:"joinType"`
	SmallColumnAlias  []string       `json:"smallColumnAlias"`
	LargeColumnAlias  []string       `json:"largeColumnAlias"`
	SmallProjection   []bool         `json:"smallProjection"`
	LargeProjection   []bool         `json:"largeProjection"`
	PostPartition     bool           `json:"postPartition"`
	PostPartitionInfo *PartitionInfo `json:"postPartitionInfo,omitempty"`
}

// ChainJoinInfo is one step of a chain join: how the accumulated left-hand
// result joins the next chain table. KeyColumnIds are the key columns of
// the join result, used by the subsequent step.
type ChainJoinInfo struct {
	JoinType          join.Type      `json:"joinType"`
	SmallColumnAlias  []string       `json:"smallColumnAlias"`
	LargeColumnAlias  []string       `json:"largeColumnAlias"`
	KeyColumnIds      []int          `json:"keyColumnIds"`
	SmallProjection   []bool         `json:"smallProjection"`
	LargeProjection   []bool         `json:"largeProjection"`
	PostPartition     bool           `json:"postPartition"`
	PostPartitionInfo *PartitionInfo `json:"postPartitionInfo,omitempty"`
}

// PartitionedJoinInfo extends JoinInfo with the hash fan-out and the bucket
// ids this worker is responsible for.
type PartitionedJoinInfo struct {
	JoinInfo
	NumPartition int   `json:"numPartition"`
	HashValues   []int `json:"hashValues"`
}

// FunctionType enumerates the aggregate functions.
type FunctionType string

const (
	FuncSum   FunctionType = "SUM"
	FuncMin   FunctionType = "MIN"
	FuncMax   FunctionType = "MAX"
	FuncCount FunctionType = "COUNT"
	FuncAvg   FunctionType = "AVG"
)

// PartialAggregationInfo tells a scan or join worker to partially aggregate
// its output before writing it.
type PartialAggregationInfo struct {
	GroupKeyColumnAlias []string       `json:"groupKeyColumnAlias"`
	ResultColumnAlias   []string       `json:"resultColumnAlias"`
	ResultColumnTypes   []string       `json:"resultColumnTypes"`
	GroupKeyColumnIds   []int          `json:"groupKeyColumnIds"`
	AggregateColumnIds  []int          `json:"aggregateColumnIds"`
	FunctionTypes       []FunctionType `json:"functionTypes"`
}
