package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./reway.db" description:"Path to the SQLite database file"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for imports and enrichment"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	RedisAddr         string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for shared import progress (optional)"`

	// Import and enrichment
	ImportConcurrency int `long:"import-concurrency" env:"IMPORT_CONCURRENCY" default:"5" description:"Bookmarks created concurrently during an import"`
	FetchTimeout      int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"15" description:"Metadata fetch timeout in seconds"`
	UndoWindow        int `long:"undo-window" env:"UNDO_WINDOW" default:"8" description:"Seconds a deleted bookmark can be restored"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Reway/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		RedisAddr:         raw.RedisAddr,
		ImportConcurrency: raw.ImportConcurrency,
		FetchTimeout:      raw.FetchTimeout,
		UndoWindow:        raw.UndoWindow,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

func (c *Cfg) UndoWindowDuration() time.Duration {
	return time.Duration(c.UndoWindow) * time.Second
}

func (c *Cfg) SchedulerIntervalDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db-path is required")
	}
	if c.ImportConcurrency < 1 {
		return fmt.Errorf("import-concurrency must be at least 1, got %d", c.ImportConcurrency)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker-count must be at least 1, got %d", c.WorkerCount)
	}
	if c.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler-interval must be at least 1, got %d", c.SchedulerInterval)
	}
	if c.FetchTimeout < 1 {
		return fmt.Errorf("fetch-timeout must be at least 1, got %d", c.FetchTimeout)
	}
	if c.UndoWindow < 1 {
		return fmt.Errorf("undo-window must be at least 1, got %d", c.UndoWindow)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
