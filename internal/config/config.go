// Package config loads prioflow settings from YAML files and PRIOFLOW_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/prioflow/pkg/common/validation"
	"github.com/vnykmshr/prioflow/pkg/scheduling/pipeline"
	"github.com/vnykmshr/prioflow/pkg/scheduling/store"
	"github.com/vnykmshr/prioflow/pkg/sink"
)

const module = "config"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PRIOFLOW_"

// Config holds settings for the prioflow CLI.
type Config struct {
	Name         string        `yaml:"name"`
	Capacity     int           `yaml:"capacity"`
	Workers      int           `yaml:"workers"`
	Delay        time.Duration `yaml:"delay"`
	IntakeBuffer int           `yaml:"intake_buffer"`
	LogBuffer    int           `yaml:"log_buffer"`

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	TaskFile string `yaml:"task_file"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`

	Cron        string `yaml:"cron"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// SQLiteConfig enables the SQLite sink when Path is set.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig enables the Redis sink when Addr is set.
type RedisConfig struct {
	Addr string        `yaml:"addr"`
	Key  string        `yaml:"key"`
	TTL  time.Duration `yaml:"ttl"`
}

// Default returns the classic settings: a store of 100 tasks, three
// workers and one second per task.
func Default() Config {
	pc := pipeline.DefaultConfig()
	return Config{
		Name:         pc.Name,
		Capacity:     store.DefaultCapacity,
		Workers:      pc.Workers,
		Delay:        pc.ExecDelay,
		IntakeBuffer: pc.IntakeBuffer,
		LogBuffer:    pc.LogBuffer,
		LogLevel:     "info",
		LogFormat:    "text",
		Redis:        RedisConfig{Key: sink.DefaultRedisKey},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PRIOFLOW_* variables looked up with
// lookup, normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("NAME", &c.Name)
	num("CAPACITY", &c.Capacity)
	num("WORKERS", &c.Workers)
	dur("DELAY", &c.Delay)
	num("INTAKE_BUFFER", &c.IntakeBuffer)
	num("LOG_BUFFER", &c.LogBuffer)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("TASK_FILE", &c.TaskFile)
	str("SQLITE_PATH", &c.SQLite.Path)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_KEY", &c.Redis.Key)
	dur("REDIS_TTL", &c.Redis.TTL)
	str("CRON", &c.Cron)
	str("METRICS_ADDR", &c.MetricsAddr)

	return errors.Join(errs...)
}

// Validate checks every field and returns all violations joined.
func (c Config) Validate() error {
	errs := []error{
		validation.ValidatePositive(module, "capacity", c.Capacity),
		validation.ValidatePositive(module, "workers", c.Workers),
		validation.ValidateDuration(module, "delay", c.Delay),
		validation.ValidateNonNegative(module, "intake_buffer", c.IntakeBuffer),
		validation.ValidateNonNegative(module, "log_buffer", c.LogBuffer),
		validation.ValidateOneOf(module, "log_level", c.LogLevel, "debug", "info", "warn", "warning", "error", "off"),
		validation.ValidateOneOf(module, "log_format", c.LogFormat, "text", "json"),
		validation.ValidateDuration(module, "redis.ttl", c.Redis.TTL),
	}
	if c.Redis.Addr != "" {
		errs = append(errs, validation.ValidateNotEmpty(module, "redis.key", c.Redis.Key))
	}
	return errors.Join(errs...)
}

// Pipeline converts the settings into a pipeline configuration.
func (c Config) Pipeline() pipeline.Config {
	pc := pipeline.DefaultConfig()
	if c.Name != "" {
		pc.Name = c.Name
	}
	pc.Capacity = c.Capacity
	pc.Workers = c.Workers
	pc.ExecDelay = c.Delay
	pc.IntakeBuffer = c.IntakeBuffer
	pc.LogBuffer = c.LogBuffer
	return pc
}
