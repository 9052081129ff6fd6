// Package config provides a reusable loader for Agent World node
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/agentworld/runtime/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for an Agent World node. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	World struct {
		ID           string `mapstructure:"id" json:"id"`
		SizeXY       int64  `mapstructure:"size_xy_cm" json:"size_xy_cm"`
		SizeZ        int64  `mapstructure:"size_z_cm" json:"size_z_cm"`
		VisibilityCM int64  `mapstructure:"visibility_range_cm" json:"visibility_range_cm"`
		WALPath      string `mapstructure:"wal_path" json:"wal_path"`
		SnapshotPath string `mapstructure:"snapshot_path" json:"snapshot_path"`
		ModulesDir   string `mapstructure:"modules_dir" json:"modules_dir"`
	} `mapstructure:"world" json:"world"`

	Sandbox struct {
		MaxMemBytes    uint32 `mapstructure:"max_mem_bytes" json:"max_mem_bytes"`
		MaxGas         uint64 `mapstructure:"max_gas" json:"max_gas"`
		MaxCallMS      int    `mapstructure:"max_call_ms" json:"max_call_ms"`
		MaxOutputBytes uint32 `mapstructure:"max_output_bytes" json:"max_output_bytes"`
		MaxEffects     int    `mapstructure:"max_effects" json:"max_effects"`
		MaxEmits       int    `mapstructure:"max_emits" json:"max_emits"`
		CompileCacheN  int    `mapstructure:"compile_cache_entries" json:"compile_cache_entries"`
		DiskCacheDir   string `mapstructure:"disk_cache_dir" json:"disk_cache_dir"`
	} `mapstructure:"sandbox" json:"sandbox"`

	Registry struct {
		RequiredSigners int `mapstructure:"required_signers" json:"required_signers"`
	} `mapstructure:"registry" json:"registry"`

	Bridge struct {
		InboundQueueSize  int  `mapstructure:"inbound_queue_size" json:"inbound_queue_size"`
		ExecutionGateOpen bool `mapstructure:"execution_gate_open" json:"execution_gate_open"`
	} `mapstructure:"bridge" json:"bridge"`

	Consensus struct {
		Type               string `mapstructure:"type" json:"type"`
		BlockTimeMS        int    `mapstructure:"block_time_ms" json:"block_time_ms"`
		ValidatorsRequired int    `mapstructure:"validators_required" json:"validators_required"`
	} `mapstructure:"consensus" json:"consensus"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
		Prune  bool   `mapstructure:"prune" json:"prune"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // env vars named after config keys override; no prefix, no .env file

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	applyDefaults(&AppConfig)
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the AGENTWORLD_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("AGENTWORLD_ENV", ""))
}

// applyDefaults fills in the zero-value ceilings the sandbox executor must
// never treat as "unbounded" (spec §4.2: max_gas=0 means "use the configured
// ceiling", never infinite).
func applyDefaults(c *Config) {
	if c.Sandbox.MaxGas == 0 {
		c.Sandbox.MaxGas = 10_000_000
	}
	if c.Sandbox.MaxMemBytes == 0 {
		c.Sandbox.MaxMemBytes = 64 * 1024 * 1024
	}
	if c.Sandbox.MaxCallMS == 0 {
		c.Sandbox.MaxCallMS = 50
	}
	if c.Sandbox.MaxOutputBytes == 0 {
		c.Sandbox.MaxOutputBytes = 1 << 20
	}
	if c.Sandbox.CompileCacheN == 0 {
		c.Sandbox.CompileCacheN = 256
	}
	if c.Bridge.InboundQueueSize == 0 {
		c.Bridge.InboundQueueSize = 1024
	}
}
