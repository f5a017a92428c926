package executor

import (
	"fmt"
	"strconv"

	"github.com/hnjylwb/pixels/executor/domain"
	"github.com/hnjylwb/pixels/executor/input"
	"github.com/hnjylwb/pixels/executor/plan"
	"github.com/hnjylwb/pixels/executor/predicate"
)

// tableFilterJSON serializes a table's scan filter; non-base tables get the
// empty filter.
func tableFilterJSON(table plan.Table) (string, error) {
	if base, ok := table.(*plan.BaseTable); ok {
		return base.Filter().MarshalJSONString()
	}
	return predicate.Empty(table.SchemaName(), table.TableName()).MarshalJSONString()
}

// broadcastTableInfo describes one side of a broadcast join over the given
// splits.
func broadcastTableInfo(table plan.Table, splits []domain.InputSplit,
	keyColumnIds []int) (domain.BroadcastTableInfo, error) {
	filter, err := tableFilterJSON(table)
	if err != nil {
		return domain.BroadcastTableInfo{}, err
	}
	return domain.BroadcastTableInfo{
		TableName:     table.TableName(),
		Base:          table.TableType() == plan.TypeBase,
		InputSplits:   splits,
		ColumnsToRead: table.ColumnNames(),
		KeyColumnIds:  keyColumnIds,
		Filter:        filter,
	}, nil
}

// partitionedFiles collects the output files of a child's join inputs, the
// pre-partitioned input of a parent partitioned join.
func partitionedFiles(joinInputs []input.JoinInput) []string {
	var files []string
	for _, in := range joinInputs {
		out := in.GetOutput()
		base := out.Path
		if base != "" && base[len(base)-1] != '/' {
			base += "/"
		}
		for _, name := range out.FileNames {
			files = append(files, base+name)
		}
	}
	return files
}

// broadcastInputSplits turns a child's output files into input splits, one
// file per split. Keeping one file per split gives the parent the same
// fan-out as the child, which the partitioned chain join relies on.
func broadcastInputSplits(joinInputs []input.JoinInput) []domain.InputSplit {
	var splits []domain.InputSplit
	for _, in := range joinInputs {
		out := in.GetOutput()
		base := out.Path
		if base != "" && base[len(base)-1] != '/' {
			base += "/"
		}
		for _, name := range out.FileNames {
			splits = append(splits, domain.InputSplit{InputInfos: []domain.InputInfo{
				{Path: base + name, StartRowGroupIndex: 0, RowGroupCount: -1},
			}})
		}
	}
	return splits
}

// partitionProjection decides which columns survive partitioning. For a
// base table, a column the join does not project is dropped when the scan
// filter references it: filter-only columns are consumed during the scan
// and need not be partitioned. Every other column is kept, so the partition
// projection is a superset of the join projection. Non-base tables keep
// everything.
func partitionProjection(table plan.Table, joinProjection []bool) []bool {
	projection := make([]bool, len(joinProjection))
	base, ok := table.(*plan.BaseTable)
	if !ok {
		for i := range projection {
			projection[i] = true
		}
		return projection
	}
	filter := base.Filter()
	for i := range projection {
		if !joinProjection[i] && filter.ColumnFilter(i) != nil {
			projection[i] = false
		} else {
			projection[i] = true
		}
	}
	return projection
}

// rewriteColumnsToRead narrows a column list by the partition projection.
func rewriteColumnsToRead(columnsToRead []string, partitionProjection []bool) []string {
	kept := 0
	for _, b := range partitionProjection {
		if b {
			kept++
		}
	}
	if kept == len(partitionProjection) {
		return columnsToRead
	}
	out := make([]string, 0, kept)
	for i, b := range partitionProjection {
		if b {
			out = append(out, columnsToRead[i])
		}
	}
	return out
}

// rewriteProjection narrows a join projection by the partition projection.
func rewriteProjection(originProjection []bool, partitionProjection []bool) []bool {
	kept := 0
	for _, b := range partitionProjection {
		if b {
			kept++
		}
	}
	if kept == len(partitionProjection) {
		return originProjection
	}
	out := make([]bool, 0, kept)
	for i, b := range partitionProjection {
		if b {
			out = append(out, originProjection[i])
		}
	}
	return out
}

// rewriteColumnIds maps column ids into the narrowed column space of the
// partition projection.
func rewriteColumnIds(originColumnIds []int, partitionProjection []bool) ([]int, error) {
	idMap := make(map[int]int, len(partitionProjection))
	next := 0
	for i, b := range partitionProjection {
		if b {
			idMap[i] = next
			next++
		}
	}
	if len(idMap) == len(partitionProjection) {
		return originColumnIds, nil
	}
	out := make([]int, len(originColumnIds))
	for i, id := range originColumnIds {
		mapped, ok := idMap[id]
		if !ok {
			return nil, fmt.Errorf("%w: column id %d was dropped by the partition projection but is still referenced",
				ErrInvalidPlan, id)
		}
		out[i] = mapped
	}
	return out, nil
}

// partitionInputs builds the partition workers of one side of a partitioned
// join, each handling up to IntraWorkerParallelism input splits. Partition
// outputs are written to the input storage so the joiners read them from
// the same store the scans read.
func (e *Executor) partitionInputs(table plan.Table, inputSplits []domain.InputSplit,
	keyColumnIds []int, partitionProjection []bool, numPartition int,
	outputBase string) ([]*input.PartitionInput, error) {
	filter, err := tableFilterJSON(table)
	if err != nil {
		return nil, err
	}
	newKeyColumnIds, err := rewriteColumnIds(keyColumnIds, partitionProjection)
	if err != nil {
		return nil, err
	}
	var inputs []*input.PartitionInput
	outputId := 0
	for _, r := range batches(len(inputSplits), e.parallelism) {
		in := &input.PartitionInput{
			QueryId: e.queryId,
			TableInfo: domain.ScanTableInfo{
				TableName:     table.TableName(),
				InputSplits:   inputSplits[r[0]:r[1]],
				ColumnsToRead: table.ColumnNames(),
				Filter:        filter,
			},
			Projection:    partitionProjection,
			PartitionInfo: domain.PartitionInfo{KeyColumnIds: newKeyColumnIds, NumPartition: numPartition},
			Output: domain.OutputInfo{
				Path:        outputBase + strconv.Itoa(outputId) + "/part",
				StorageInfo: e.inputStorageInfo(),
				Encoding:    true,
			},
		}
		outputId++
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// partitionedTableInfo describes one side of a partitioned join fed by the
// given partition workers.
func (e *Executor) partitionedTableInfo(table plan.Table, keyColumnIds []int,
	partitionInputs []*input.PartitionInput,
	partitionProjection []bool) (domain.PartitionedTableInfo, error) {
	files := make([]string, 0, len(partitionInputs))
	for _, in := range partitionInputs {
		files = append(files, in.Output.Path)
	}
	newKeyColumnIds, err := rewriteColumnIds(keyColumnIds, partitionProjection)
	if err != nil {
		return domain.PartitionedTableInfo{}, err
	}
	return domain.PartitionedTableInfo{
		TableName:     table.TableName(),
		Base:          table.TableType() == plan.TypeBase,
		InputFiles:    files,
		Parallelism:   e.parallelism,
		ColumnsToRead: rewriteColumnsToRead(table.ColumnNames(), partitionProjection),
		KeyColumnIds:  newKeyColumnIds,
	}, nil
}
