package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Keys recognized by the executor. Anything else in the underlying
// configuration source is ignored.
const (
	KeyInputStorage             = "executor.input.storage"
	KeyIntermediateStorage      = "executor.intermediate.storage"
	KeyIntermediateFolder       = "executor.intermediate.folder"
	KeyIntraWorkerParallelism   = "executor.intra.worker.parallelism"
	KeyPreAggrThreshold         = "aggregation.pre-aggregate.threshold"
	KeyComputeFinalAggrInServer = "aggregation.compute.final.in.server"
	KeyFixedSplitSize           = "fixed.split.size"
	KeyProjectionReadEnabled    = "projection.read.enabled"
	KeySplitsIndexType          = "splits.index.type"
	KeyMetadataServerHost       = "metadata.server.host"
	KeyMetadataServerPort       = "metadata.server.port"
)

// Config provides typed access to the executor configuration.
type Config struct {
	v *viper.Viper
}

// New creates a Config backed by a fresh viper instance seeded with the
// defaults. Overrides are applied on top, typically parsed from a
// properties file or passed programmatically.
func New(overrides map[string]string) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyInputStorage, "s3")
	v.SetDefault(KeyIntermediateStorage, "s3")
	v.SetDefault(KeyIntermediateFolder, "/pixels-intermediate/")
	v.SetDefault(KeyIntraWorkerParallelism, 8)
	v.SetDefault(KeyPreAggrThreshold, 16)
	v.SetDefault(KeyComputeFinalAggrInServer, false)
	v.SetDefault(KeyFixedSplitSize, 0)
	v.SetDefault(KeyProjectionReadEnabled, false)
	v.SetDefault(KeySplitsIndexType, "inverted")
	v.SetDefault(KeyMetadataServerHost, "localhost")
	v.SetDefault(KeyMetadataServerPort, 18888)
	for key, value := range overrides {
		v.Set(key, value)
	}
	c := &Config{v: v}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a properties-style configuration file and applies it on top of
// the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	overrides := make(map[string]string)
	for _, key := range v.AllKeys() {
		overrides[key] = v.GetString(key)
	}
	return New(overrides)
}

func (c *Config) validate() error {
	if c.IntraWorkerParallelism() <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %d",
			KeyIntraWorkerParallelism, c.IntraWorkerParallelism())
	}
	if c.PreAggrThreshold() <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %d",
			KeyPreAggrThreshold, c.PreAggrThreshold())
	}
	if c.FixedSplitSize() < 0 {
		return fmt.Errorf("%s must be non-negative, got %d",
			KeyFixedSplitSize, c.FixedSplitSize())
	}
	switch c.SplitsIndexType() {
	case "inverted", "cost_based":
	default:
		return fmt.Errorf("%s must be 'inverted' or 'cost_based', got %q",
			KeySplitsIndexType, c.SplitsIndexType())
	}
	return nil
}

// InputStorage returns the scheme name of the storage the base tables live on.
func (c *Config) InputStorage() string {
	return strings.ToLower(c.v.GetString(KeyInputStorage))
}

// IntermediateStorage returns the scheme name for intermediate files.
func (c *Config) IntermediateStorage() string {
	return strings.ToLower(c.v.GetString(KeyIntermediateStorage))
}

// IntermediateFolder returns the intermediate path prefix with a trailing
// slash enforced.
func (c *Config) IntermediateFolder() string {
	folder := c.v.GetString(KeyIntermediateFolder)
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	return folder
}

// IntraWorkerParallelism is the number of input splits assigned to one
// worker invocation.
func (c *Config) IntraWorkerParallelism() int {
	return c.v.GetInt(KeyIntraWorkerParallelism)
}

// PreAggrThreshold is the producer count above which a pre-aggregation
// stage is inserted.
func (c *Config) PreAggrThreshold() int {
	return c.v.GetInt(KeyPreAggrThreshold)
}

// ComputeFinalAggrInServer reports whether the final aggregation runs in the
// server rather than in a worker.
func (c *Config) ComputeFinalAggrInServer() bool {
	return c.v.GetBool(KeyComputeFinalAggrInServer)
}

// FixedSplitSize returns the fixed split size; 0 means the splits index
// decides.
func (c *Config) FixedSplitSize() int {
	return c.v.GetInt(KeyFixedSplitSize)
}

// ProjectionReadEnabled reports whether projection-optimized compact paths
// may replace the layout's compact path.
func (c *Config) ProjectionReadEnabled() bool {
	return c.v.GetBool(KeyProjectionReadEnabled)
}

// SplitsIndexType returns "inverted" or "cost_based".
func (c *Config) SplitsIndexType() string {
	return strings.ToLower(c.v.GetString(KeySplitsIndexType))
}

// MetadataServerHost returns the metadata service host.
func (c *Config) MetadataServerHost() string {
	return c.v.GetString(KeyMetadataServerHost)
}

// MetadataServerPort returns the metadata service port.
func (c *Config) MetadataServerPort() int {
	return c.v.GetInt(KeyMetadataServerPort)
}
