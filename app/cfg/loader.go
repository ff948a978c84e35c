package cfg

import (
	"cmp"
	"fmt"
	"strings"
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
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"flyer_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"flyer_comb" description:"Database name"`
	DBSSLMode  string `long:"db-sslmode" env:"DB_SSLMODE" default:"disable" description:"Database SSL mode"`

	// Ingestion configuration
	ProfilesDir  string `long:"profiles-dir" env:"PROFILES_DIR" default:"./profiles" description:"Directory containing site profile files"`
	Once         bool   `long:"once" env:"RUN_ONCE" description:"Run a single ingestion cycle and exit"`
	CycleMinutes int    `long:"cycle-interval" env:"CYCLE_INTERVAL" default:"60" description:"Minutes between ingestion cycles"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background workers for flyer processing"`
	ItemWorkers  int    `long:"item-workers" env:"ITEM_WORKERS" default:"1" description:"Concurrent item extractions within one flyer"`
	FlyerRetries int    `long:"flyer-retries" env:"FLYER_RETRIES" default:"2" description:"Page-load retries before a flyer is deferred"`

	// Vision backend configuration
	VisionEndpoint string `long:"vision-endpoint" env:"VISION_ENDPOINT" default:"https://%s-inference.groceryroute.dev/v1/describe" description:"Vision inference endpoint template, %s is the region"`
	Regions        string `long:"vision-regions" env:"VISION_REGIONS" default:"us-central1,us-east1,us-west1" description:"Comma-separated inference regions"`
	RegionQuota    int    `long:"region-quota" env:"REGION_QUOTA" default:"5" description:"Inference calls allowed per region per window"`
	QuotaWindowSec int    `long:"quota-window" env:"QUOTA_WINDOW" default:"60" description:"Quota window in seconds"`
	CooldownSec    int    `long:"quota-cooldown" env:"QUOTA_COOLDOWN" default:"60" description:"Sleep in seconds when every region is saturated"`
	StagingURL     string `long:"staging-url" env:"STAGING_URL" default:"https://blob.groceryroute.dev/staging" description:"Base URL of the transient image staging store"`

	// Translation backend configuration
	TranslateURL string `long:"translate-url" env:"TRANSLATE_URL" default:"https://translate.groceryroute.dev/translate" description:"Translation service URL"`
	RedisAddr    string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the translation cache (empty disables caching)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Flyer Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"America/Montreal" description:"Timezone for flyer expiry dates"`
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
		DBHost:         raw.DBHost,
		DBPort:         raw.DBPort,
		DBUser:         raw.DBUser,
		DBPassword:     raw.DBPassword,
		DBName:         raw.DBName,
		DBSSLMode:      raw.DBSSLMode,
		ProfilesDir:    raw.ProfilesDir,
		Once:           raw.Once,
		CycleMinutes:   raw.CycleMinutes,
		WorkerCount:    raw.WorkerCount,
		ItemWorkers:    raw.ItemWorkers,
		FlyerRetries:   raw.FlyerRetries,
		VisionEndpoint: raw.VisionEndpoint,
		Regions:        splitRegions(raw.Regions),
		RegionQuota:    raw.RegionQuota,
		QuotaWindowSec: raw.QuotaWindowSec,
		CooldownSec:    raw.CooldownSec,
		StagingURL:     raw.StagingURL,
		TranslateURL:   raw.TranslateURL,
		RedisAddr:      raw.RedisAddr,
		UserAgent:      raw.UserAgent,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if len(cfg.Regions) == 0 {
		return nil, fmt.Errorf("at least one vision region is required")
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

func splitRegions(raw string) []string {
	var regions []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			regions = append(regions, trimmed)
		}
	}
	return regions
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
