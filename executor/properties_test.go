package executor

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnjylwb/pixels/executor/join"
	"github.com/hnjylwb/pixels/executor/operator"
	"github.com/hnjylwb/pixels/executor/plan"
	"github.com/hnjylwb/pixels/executor/predicate"
)

// buildFivewayPlan builds the most involved shape the compiler supports: a
// broadcast chain fused into a partitioned pipeline. Each call builds the
// plan against a fresh environment.
func buildFivewayPlan(t *testing.T) (*testEnv, *plan.JoinedTable) {
	te := newTestEnv(t, nil)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		te.addBaseTable("q", name, []string{name + "0"}, 4)
	}
	a := baseTable(t, "q", "a", []string{"a0"})
	b := baseTable(t, "q", "b", []string{"b0"})
	c := baseTable(t, "q", "c", []string{"c0"})
	d := baseTable(t, "q", "d", []string{"d0"})
	e := baseTable(t, "q", "e", []string{"e0"})
	ab := joinTables(t, "ab", a, b, join.AlgoBroadcast, join.SmallLeft)
	abc := joinTables(t, "abc", ab, c, join.AlgoBroadcast, join.SmallLeft)
	de := joinTables(t, "de", d, e, join.AlgoPartitioned, join.SmallLeft)
	root := joinTables(t, "abcde", abc, de, join.AlgoBroadcast, join.SmallLeft)
	return te, root
}

// Compiling the same plan twice yields byte-identical worker inputs in the
// same order.
func TestCompilationIsDeterministic(t *testing.T) {
	marshal := func(t *testing.T) []byte {
		te, root := buildFivewayPlan(t)
		op := te.mustCompile(root)
		inputs := collectJoinInputs(op.(operator.JoinOperator))
		data, err := json.Marshal(inputs)
		require.NoError(t, err)
		return data
	}
	first := marshal(t)
	second := marshal(t)
	assert.Empty(t, cmp.Diff(string(first), string(second)))
}

// Output paths are unique across all worker inputs of one compilation.
func TestOutputPathsAreUnique(t *testing.T) {
	te, root := buildFivewayPlan(t)
	op := te.mustCompile(root)
	paths := collectOutputPaths(op)
	require.NotEmpty(t, paths)
	seen := map[string]bool{}
	for _, path := range paths {
		assert.False(t, seen[path], "duplicate output path %s", path)
		seen[path] = true
	}
}

// A partitioned base table's partition projection keeps every join-projected
// column and drops only filter-only columns.
func TestPartitionProjectionSupersetOfJoinProjection(t *testing.T) {
	filter := predicate.NewTableScanFilter("q", "r", map[int]*predicate.ColumnFilter{
		2: {ColumnName: "r2", DiscreteValues: []string{"x"}},
	})
	table, err := plan.NewBaseTable("q", "r", []string{"r0", "r1", "r2"}, filter)
	require.NoError(t, err)

	joinProjection := []bool{true, false, false}
	projection := partitionProjection(table, joinProjection)
	// r0 is projected, r1 is neither filtered nor projected and survives,
	// r2 is filter-only and is dropped.
	assert.Equal(t, []bool{true, true, false}, projection)
	for i := range joinProjection {
		if joinProjection[i] {
			assert.True(t, projection[i])
		}
	}

	columns := rewriteColumnsToRead(table.ColumnNames(), projection)
	assert.Equal(t, []string{"r0", "r1"}, columns)
	keys, err := rewriteColumnIds([]int{1}, projection)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, keys)
	_, err = rewriteColumnIds([]int{2}, projection)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

// The root of a compilation never carries an incomplete chain join, and
// every completed chain input balances its chain tables and join infos.
func TestNoIncompleteChainEscapes(t *testing.T) {
	te, root := buildFivewayPlan(t)
	op := te.mustCompile(root)
	var check func(op operator.JoinOperator)
	check = func(op operator.JoinOperator) {
		if op == nil {
			return
		}
		assert.Nil(t, op.IncompleteChain(), "operator %s", op.Name())
		check(op.SmallChild())
		check(op.LargeChild())
	}
	check(op.(operator.JoinOperator))
}

// A multi-pipeline broadcast join whose left pipeline cannot chain is
// rejected, matching the known limitation of the chain builder.
func TestUnchainableBroadcastIsRejected(t *testing.T) {
	te := newTestEnv(t, nil)
	for _, name := range []string{"a", "b", "c", "d"} {
		te.addBaseTable("q", name, []string{name + "0"}, 4)
	}
	a := baseTable(t, "q", "a", []string{"a0"})
	b := baseTable(t, "q", "b", []string{"b0"})
	c := baseTable(t, "q", "c", []string{"c0"})
	d := baseTable(t, "q", "d", []string{"d0"})
	// The left pipeline is partitioned, so it cannot produce a chain for
	// the broadcast meeting point.
	ab := joinTables(t, "ab", a, b, join.AlgoPartitioned, join.SmallLeft)
	cd := joinTables(t, "cd", c, d, join.AlgoBroadcast, join.SmallLeft)
	root := joinTables(t, "abcd", ab, cd, join.AlgoBroadcast, join.SmallLeft)

	_, err := te.compile(root)
	require.ErrorIs(t, err, ErrInvalidPlan)
}
