package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bidsflow/bidsflow/internal/logging"
	"github.com/bidsflow/bidsflow/pkg/ziplist"
)

// FileName is the base name of the config file searched for in the working
// directory
const FileName = "bidsflow"

// EnvPrefix prefixes environment overrides, e.g. BIDSFLOW_OUTPUT_DIR
const EnvPrefix = "BIDSFLOW"

// Analysis levels accepted by analysis_level
const (
	LevelParticipant = "participant"
	LevelGroup       = "group"
)

// Config represents the bidsflow configuration
type Config struct {
	BIDSDir                 string                 `mapstructure:"bids_dir" yaml:"bids_dir"`
	OutputDir               string                 `mapstructure:"output_dir" yaml:"output_dir"`
	AnalysisLevel           string                 `mapstructure:"analysis_level" yaml:"analysis_level"`
	ParticipantLabel        []string               `mapstructure:"participant_label" yaml:"participant_label,omitempty"`
	ExcludeParticipantLabel []string               `mapstructure:"exclude_participant_label" yaml:"exclude_participant_label,omitempty"`
	Inputs                  map[string]InputConfig `mapstructure:"pybids_inputs" yaml:"pybids_inputs"`
	Index                   IndexConfig            `mapstructure:"index" yaml:"index"`
	Cache                   CacheConfig            `mapstructure:"cache" yaml:"cache"`
	Log                     logging.Config         `mapstructure:"log" yaml:"log"`
}

// InputConfig describes one input component
type InputConfig struct {
	// Filters restrict the component's entries, matched literally
	Filters ziplist.Filters `mapstructure:"filters" yaml:"filters,omitempty"`
	// Wildcards lists the entities the component is expected to carry
	Wildcards []string `mapstructure:"wildcards" yaml:"wildcards,omitempty"`
}

// IndexConfig represents the component index database
type IndexConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// CacheConfig represents the dataset cache
type CacheConfig struct {
	Backend   string        `mapstructure:"backend" yaml:"backend"`
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Default returns a configuration holding only defaults
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("bids_dir", "")
	v.SetDefault("analysis_level", LevelParticipant)
	v.SetDefault("output_dir", ".")
	v.SetDefault("index.driver", "sqlite")
	v.SetDefault("index.dsn", filepath.Join(".bidsflow", "index.db"))
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads the configuration. An explicit path must exist; otherwise
// bidsflow.yml or bidsflow.yaml is looked up in the working directory and
// defaults are used when neither is present.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Inputs == nil {
		cfg.Inputs = make(map[string]InputConfig)
	}
	return &cfg, nil
}

// Validate checks the configuration for values no stage can work with
func (c *Config) Validate() error {
	switch c.AnalysisLevel {
	case LevelParticipant, LevelGroup:
	default:
		return fmt.Errorf("analysis_level must be %q or %q, got: %q", LevelParticipant, LevelGroup, c.AnalysisLevel)
	}

	if len(c.ParticipantLabel) > 0 && len(c.ExcludeParticipantLabel) > 0 {
		return fmt.Errorf("participant_label and exclude_participant_label: %w", ziplist.ErrConflictingFilters)
	}

	switch c.Cache.Backend {
	case "", CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend: %q", c.Cache.Backend)
	}

	for name, input := range c.Inputs {
		for entity := range input.Filters {
			if entity == "" {
				return fmt.Errorf("pybids_inputs.%s: filter with empty entity", name)
			}
		}
	}
	return nil
}

// WriteYAML writes the configuration as YAML to path, creating parent
// directories
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadYAML reads a configuration written by WriteYAML
func ReadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &cfg, nil
}
