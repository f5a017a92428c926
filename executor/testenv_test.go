package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hnjylwb/pixels/config"
	"github.com/hnjylwb/pixels/executor/input"
	"github.com/hnjylwb/pixels/executor/join"
	"github.com/hnjylwb/pixels/executor/layout"
	"github.com/hnjylwb/pixels/executor/operator"
	"github.com/hnjylwb/pixels/executor/plan"
	"github.com/hnjylwb/pixels/metadata"
	"github.com/hnjylwb/pixels/storage"
)

type fakeMetadata struct {
	layouts map[string][]*metadata.Layout
}

func (f *fakeMetadata) GetLayouts(ctx context.Context, schemaName, tableName string) ([]*metadata.Layout, error) {
	layouts, ok := f.layouts[schemaName+"."+tableName]
	if !ok {
		return nil, fmt.Errorf("no layouts for %s.%s", schemaName, tableName)
	}
	return layouts, nil
}

type testEnv struct {
	t       *testing.T
	cfg     *config.Config
	meta    *fakeMetadata
	store   *storage.Mem
	advisor *join.StaticAdvisor
	env     Env
}

func newTestEnv(t *testing.T, overrides map[string]string) *testEnv {
	t.Helper()
	settings := map[string]string{
		config.KeyInputStorage:           "mem",
		config.KeyIntermediateStorage:    "mem",
		config.KeyIntermediateFolder:     "/intermediate/",
		config.KeyIntraWorkerParallelism: "2",
		config.KeyPreAggrThreshold:       "16",
		config.KeyFixedSplitSize:         "2",
	}
	for k, v := range overrides {
		settings[k] = v
	}
	cfg, err := config.New(settings)
	require.NoError(t, err)
	te := &testEnv{
		t:       t,
		cfg:     cfg,
		meta:    &fakeMetadata{layouts: map[string][]*metadata.Layout{}},
		store:   storage.NewMem(),
		advisor: join.NewStaticAdvisor(4),
	}
	te.env = Env{
		Config:   cfg,
		Metadata: te.meta,
		Storage:  te.store,
		Advisor:  te.advisor,
		Indexes:  layout.NewFactory(),
	}
	return te
}

// addBaseTable registers a base table with numOrderedFiles append-only
// files and an empty compact path.
func (te *testEnv) addBaseTable(schemaName, tableName string, columnNames []string, numOrderedFiles int) {
	te.t.Helper()
	orderPath := "/data/" + schemaName + "/" + tableName + "/ordered/"
	for i := 0; i < numOrderedFiles; i++ {
		te.store.Add(fmt.Sprintf("%s%03d.pxl", orderPath, i))
	}
	order, err := json.Marshal(metadata.Order{ColumnOrder: columnNames})
	require.NoError(te.t, err)
	splits, err := json.Marshal(metadata.Splits{
		NumRowGroupInBlock: 8,
		SplitPatterns: []metadata.SplitPatternSpec{
			{AccessedColumns: columnNames, NumRowGroupInSplit: 4},
		},
	})
	require.NoError(te.t, err)
	projections, err := json.Marshal(metadata.Projections{})
	require.NoError(te.t, err)
	te.meta.layouts[schemaName+"."+tableName] = []*metadata.Layout{{
		Version:     1,
		OrderPath:   orderPath,
		CompactPath: "/data/" + schemaName + "/" + tableName + "/compact/",
		Order:       string(order),
		Splits:      string(splits),
		Projections: string(projections),
	}}
}

func (te *testEnv) compile(root plan.Table) (operator.Operator, error) {
	te.t.Helper()
	e, err := New(1234, root, te.env, true, false)
	if err != nil {
		return nil, err
	}
	return e.RootOperator(context.Background())
}

func (te *testEnv) mustCompile(root plan.Table) operator.Operator {
	te.t.Helper()
	op, err := te.compile(root)
	require.NoError(te.t, err)
	return op
}

func baseTable(t *testing.T, schemaName, tableName string, columnNames []string) *plan.BaseTable {
	t.Helper()
	table, err := plan.NewBaseTable(schemaName, tableName, columnNames, nil)
	require.NoError(t, err)
	return table
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

// joinTables builds a joined table projecting every column of both sides,
// keyed on column 0 of each side.
func joinTables(t *testing.T, name string, left, right plan.Table,
	algo join.Algorithm, endian join.Endian) *plan.JoinedTable {
	t.Helper()
	j, err := plan.NewJoin(left, right,
		[]int{0}, []int{0},
		allTrue(len(left.ColumnNames())), allTrue(len(right.ColumnNames())),
		left.ColumnNames(), right.ColumnNames(),
		join.TypeEquiInner, algo, endian)
	require.NoError(t, err)
	joined, err := plan.NewJoinedTable("q", name, j)
	require.NoError(t, err)
	return joined
}

// collectJoinInputs walks the operator tree bottom-up and returns every
// join input, children before parents.
func collectJoinInputs(op operator.JoinOperator) []input.JoinInput {
	if op == nil {
		return nil
	}
	var inputs []input.JoinInput
	inputs = append(inputs, collectJoinInputs(op.SmallChild())...)
	inputs = append(inputs, collectJoinInputs(op.LargeChild())...)
	inputs = append(inputs, op.JoinInputs()...)
	return inputs
}

// collectOutputPaths gathers the full output paths of every worker input in
// the tree rooted at op.
func collectOutputPaths(op operator.Operator) []string {
	var paths []string
	switch op := op.(type) {
	case operator.JoinOperator:
		if op == nil {
			return nil
		}
		if small := op.SmallChild(); small != nil {
			paths = append(paths, collectOutputPaths(small)...)
		}
		if large := op.LargeChild(); large != nil {
			paths = append(paths, collectOutputPaths(large)...)
		}
		if pj, ok := op.(*operator.PartitionedJoinOperator); ok {
			for _, in := range pj.SmallPartitionInputs() {
				paths = append(paths, in.Output.Path)
			}
			for _, in := range pj.LargePartitionInputs() {
				paths = append(paths, in.Output.Path)
			}
		}
		for _, in := range op.JoinInputs() {
			out := in.GetOutput()
			for _, name := range out.FileNames {
				paths = append(paths, out.Path+name)
			}
		}
	case *operator.AggregationOperator:
		if child := op.Child(); child != nil {
			paths = append(paths, collectOutputPaths(child)...)
		}
		for _, in := range op.ScanInputs() {
			paths = append(paths, in.Output.Path)
		}
		for _, in := range op.PreAggrInputs() {
			paths = append(paths, in.Output.Path)
		}
		paths = append(paths, op.FinalAggrInput().Output.Path)
	}
	return paths
}
