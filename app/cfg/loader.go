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
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./feedcourier.db" description:"Path to the SQLite database file"`

	// Telegram configuration
	BotToken string `long:"bot-token" env:"BOT_TOKEN" description:"Telegram bot token (required unless --dry-run sinks are used)" required:"true"`

	// Application configuration
	BootstrapFile string `long:"bootstrap-file" env:"BOOTSTRAP_FILE" description:"Optional YAML file with feeds, destinations and subscriptions to register at startup"`
	Port          string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount   int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed and delivery processing"`
	SchedulerTick int    `long:"scheduler-tick" env:"SCHEDULER_TICK" default:"300" description:"Feed check scheduler tick in seconds"`
	PublisherTick int    `long:"publisher-tick" env:"PUBLISHER_TICK" default:"60" description:"Delivery queue drain tick in seconds"`
	PublishBatch  int    `long:"publish-batch" env:"PUBLISH_BATCH" default:"100" description:"Maximum delivery tasks dispatched per drain"`
	PublishRate   int    `long:"publish-rate" env:"PUBLISH_RATE" default:"5" description:"Maximum messages sent per second"`
	FetchTimeout  int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-feed fetch timeout in seconds"`
	SendTimeout   int    `long:"send-timeout" env:"SEND_TIMEOUT" default:"15" description:"Per-message send timeout in seconds"`
	APIAccessKey  string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Feed Courier/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:        raw.DBPath,
		BotToken:      raw.BotToken,
		BootstrapFile: raw.BootstrapFile,
		Port:          raw.Port,
		WorkerCount:   raw.WorkerCount,
		SchedulerTick: raw.SchedulerTick,
		PublisherTick: raw.PublisherTick,
		PublishBatch:  raw.PublishBatch,
		PublishRate:   raw.PublishRate,
		FetchTimeout:  raw.FetchTimeout,
		SendTimeout:   raw.SendTimeout,
		APIAccessKey:  raw.APIAccessKey,
		UserAgent:     raw.UserAgent,
		Timezone:      raw.Timezone,
		Debug:         raw.Debug,
		Version:       GetVersion(),
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

// Set installs a configuration directly. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
