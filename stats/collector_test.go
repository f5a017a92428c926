package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderRow struct {
	Key    int64   `parquet:"key"`
	Amount float64 `parquet:"amount"`
}

func writeParquet(t *testing.T, path string, rows []orderRow) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	writer := parquet.NewGenericWriter[orderRow](f)
	_, err = writer.Write(rows)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, f.Close())
}

func TestCollectLocalFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "000.parquet")
	second := filepath.Join(dir, "001.parquet")
	writeParquet(t, first, []orderRow{
		{Key: 1, Amount: 10.5},
		{Key: 2, Amount: 20.5},
	})
	writeParquet(t, second, []orderRow{
		{Key: 3, Amount: 30.5},
	})

	collector := NewCollector()
	stats, err := collector.Collect("orders", []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.RowCount)
	assert.Positive(t, stats.SizeBytes)
	assert.Positive(t, stats.NumRowGroups)
	assert.Positive(t, stats.AvgRowGroupBytes)
	require.Contains(t, stats.ColumnStats, "key")
	assert.True(t, stats.ColumnStats["key"].HasBounds)

	// Collected statistics are cached by table name.
	assert.Same(t, stats, collector.Get("orders"))
	assert.Nil(t, collector.Get("lineitem"))
}

func TestCollectMissingFile(t *testing.T) {
	collector := NewCollector()
	_, err := collector.Collect("orders", []string{"/no/such/file.parquet"})
	assert.Error(t, err)
}

func TestPutSeedsCache(t *testing.T) {
	collector := NewCollector()
	collector.Put(&TableStatistics{TableName: "seeded", RowCount: 99})
	got := collector.Get("seeded")
	require.NotNil(t, got)
	assert.Equal(t, int64(99), got.RowCount)
}
