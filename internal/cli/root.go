// Package cli implements the prioflow command line.
package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/prioflow/internal/config"
	"github.com/vnykmshr/prioflow/internal/logging"
)

// options holds flag values and the configuration resolved from them.
type options struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool

	workers    int
	capacity   int
	delay      time.Duration
	file       string
	sqlitePath string
	redisAddr  string
	redisKey   string
	quiet      bool

	cfg    config.Config
	logger zerolog.Logger
}

// NewRootCmd creates the root cobra command for the prioflow CLI.
func NewRootCmd() *cobra.Command {
	o := &options{}
	def := config.Default()

	root := &cobra.Command{
		Use:   "prioflow",
		Short: "prioflow: priority-ordered batch task pipeline",
		Long: "prioflow reads a batch of named, prioritized tasks, stores them in priority\n" +
			"order, executes them on a fixed pool of workers and logs every completion.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.load(cmd)
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&o.logLevel, "log-level", def.LogLevel, "Log level (debug, info, warn, error, off)")
	pf.StringVar(&o.logFormat, "log-format", def.LogFormat, "Log format (text, json)")
	pf.BoolVar(&o.debug, "debug", false, "Shorthand for --log-level=debug")
	pf.IntVar(&o.workers, "workers", def.Workers, "Number of executor workers")
	pf.IntVar(&o.capacity, "capacity", def.Capacity, "Task store capacity; extra tasks are dropped")
	pf.DurationVar(&o.delay, "delay", def.Delay, "Simulated execution time per task")
	pf.StringVarP(&o.file, "file", "f", "", "Task file (.yaml/.yml or count-prefixed text)")
	pf.StringVar(&o.sqlitePath, "sqlite", "", "Also record completions in this SQLite database")
	pf.StringVar(&o.redisAddr, "redis-addr", "", "Also push completions to this Redis server")
	pf.StringVar(&o.redisKey, "redis-key", def.Redis.Key, "Redis list key for completions")
	pf.BoolVarP(&o.quiet, "quiet", "q", false, "Suppress prompts and the run summary")

	root.AddCommand(
		newRunCmd(o),
		newScheduleCmd(o),
		newHistoryCmd(o),
		newVersionCmd(),
	)

	return root
}

// load resolves the configuration: defaults, then the config file, then
// PRIOFLOW_* variables, then flags set on the command line.
func (o *options) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	if f.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if f.Changed("workers") {
		cfg.Workers = o.workers
	}
	if f.Changed("capacity") {
		cfg.Capacity = o.capacity
	}
	if f.Changed("delay") {
		cfg.Delay = o.delay
	}
	if f.Changed("file") {
		cfg.TaskFile = o.file
	}
	if f.Changed("sqlite") {
		cfg.SQLite.Path = o.sqlitePath
	}
	if f.Changed("redis-addr") {
		cfg.Redis.Addr = o.redisAddr
	}
	if f.Changed("redis-key") {
		cfg.Redis.Key = o.redisKey
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}
