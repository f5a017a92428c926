package stats

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"howett.net/ranger"
)

// TableStatistics summarizes the physical shape of one table, aggregated
// over the files sampled from its storage layout.
type TableStatistics struct {
	TableName        string                       `json:"tableName"`
	RowCount         int64                        `json:"rowCount"`
	SizeBytes        int64                        `json:"sizeBytes"`
	NumRowGroups     int64                        `json:"numRowGroups"`
	AvgRowGroupBytes int64                        `json:"avgRowGroupBytes"`
	LastUpdated      time.Time                    `json:"lastUpdated"`
	ColumnStats      map[string]*ColumnStatistics `json:"columnStats"`
}

// ColumnStatistics carries the per-column footer statistics used for
// selectivity estimation. Bounds are kept in their textual form; the
// estimator only needs an ordering.
type ColumnStatistics struct {
	ColumnName string `json:"columnName"`
	MinValue   string `json:"minValue"`
	MaxValue   string `json:"maxValue"`
	HasBounds  bool   `json:"hasBounds"`
}

// Collector reads parquet footers to produce table statistics. Files may
// live on the local filesystem or behind an HTTP endpoint; remote footers
// are fetched with range reads rather than whole-object downloads.
type Collector struct {
	mu    sync.RWMutex
	cache map[string]*TableStatistics
}

// NewCollector creates a collector with an empty cache.
func NewCollector() *Collector {
	return &Collector{cache: make(map[string]*TableStatistics)}
}

// Get returns the cached statistics for tableName, or nil if absent.
func (c *Collector) Get(tableName string) *TableStatistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache[tableName]
}

// Put replaces the cached statistics for stats.TableName. It is exported so
// deployments can seed the cache from a statistics service instead of
// scanning footers on the fly.
func (c *Collector) Put(stats *TableStatistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[stats.TableName] = stats
}

// Collect reads the footers of the given files and caches the aggregated
// statistics under tableName.
func (c *Collector) Collect(tableName string, paths []string) (*TableStatistics, error) {
	stats := &TableStatistics{
		TableName:   tableName,
		LastUpdated: time.Now(),
		ColumnStats: make(map[string]*ColumnStatistics),
	}
	for _, path := range paths {
		if err := c.collectFile(path, stats); err != nil {
			return nil, fmt.Errorf("failed to collect statistics of table %s: %w", tableName, err)
		}
	}
	if stats.NumRowGroups > 0 {
		stats.AvgRowGroupBytes = stats.SizeBytes / stats.NumRowGroups
	}
	c.Put(stats)
	return stats, nil
}

func (c *Collector) collectFile(path string, stats *TableStatistics) error {
	file, closer, err := openParquet(path)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	stats.SizeBytes += file.Size()
	schema := file.Schema()
	for _, rowGroup := range file.RowGroups() {
		stats.NumRowGroups++
		stats.RowCount += rowGroup.NumRows()
		for idx, chunk := range rowGroup.ColumnChunks() {
			name := schema.Fields()[idx].Name()
			cs := stats.ColumnStats[name]
			if cs == nil {
				cs = &ColumnStatistics{ColumnName: name}
				stats.ColumnStats[name] = cs
			}
			if fileChunk, ok := chunk.(*parquet.FileColumnChunk); ok {
				min, max, hasBounds := fileChunk.Bounds()
				if hasBounds {
					if !cs.HasBounds || min.String() < cs.MinValue {
						cs.MinValue = min.String()
					}
					if !cs.HasBounds || max.String() > cs.MaxValue {
						cs.MaxValue = max.String()
					}
					cs.HasBounds = true
				}
			}
		}
	}
	return nil
}

// openParquet opens a parquet file for footer reading. HTTP and HTTPS paths
// are opened with range reads.
func openParquet(path string) (*parquet.File, io.Closer, error) {
	if u, err := url.Parse(path); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return openHTTPParquet(u)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}
	file, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return file, f, nil
}

func openHTTPParquet(u *url.URL) (*parquet.File, io.Closer, error) {
	reader, err := ranger.NewReader(&ranger.HTTPRanger{URL: u})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open http range reader: %w", err)
	}
	size, err := reader.Length()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get remote file size: %w", err)
	}
	file, err := parquet.OpenFile(reader, size)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open remote parquet file: %w", err)
	}
	return file, nil, nil
}
