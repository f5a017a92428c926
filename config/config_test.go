package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.InputStorage())
	assert.Equal(t, "s3", cfg.IntermediateStorage())
	assert.Equal(t, 8, cfg.IntraWorkerParallelism())
	assert.Equal(t, 16, cfg.PreAggrThreshold())
	assert.Equal(t, 0, cfg.FixedSplitSize())
	assert.False(t, cfg.ProjectionReadEnabled())
	assert.Equal(t, "inverted", cfg.SplitsIndexType())
}

func TestIntermediateFolderTrailingSlash(t *testing.T) {
	cfg, err := New(map[string]string{KeyIntermediateFolder: "/tmp/pixels"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pixels/", cfg.IntermediateFolder())

	cfg, err = New(map[string]string{KeyIntermediateFolder: "/tmp/pixels/"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pixels/", cfg.IntermediateFolder())
}

func TestValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"zero parallelism":    {KeyIntraWorkerParallelism: "0"},
		"negative threshold":  {KeyPreAggrThreshold: "-1"},
		"negative split size": {KeyFixedSplitSize: "-2"},
		"bad index type":      {KeySplitsIndexType: "hashed"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(overrides)
			assert.Error(t, err)
		})
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := New(map[string]string{
		KeyInputStorage:    "MINIO",
		KeySplitsIndexType: "COST_BASED",
		KeyFixedSplitSize:  "32",
	})
	require.NoError(t, err)
	assert.Equal(t, "minio", cfg.InputStorage())
	assert.Equal(t, "cost_based", cfg.SplitsIndexType())
	assert.Equal(t, 32, cfg.FixedSplitSize())
}
