// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/archive"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/backfill"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/logging"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/storage"
)

// DefaultSourceURL is the Bristol Bay inseason harvest page.
const DefaultSourceURL = "https://www.adfg.alaska.gov/index.cfm?adfg=commercialbyareabristolbay.inseason"

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Backfill BackfillConfig `mapstructure:"backfill"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig locates the harvest page and its form controls.
type SourceConfig struct {
	URL            string `mapstructure:"url"`
	DateSelector   string `mapstructure:"date_selector"`
	SubmitSelector string `mapstructure:"submit_selector"`
	UserAgent      string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the browser session and per-step timeouts.
type HeadlessConfig struct {
	NavTimeoutSec     int     `mapstructure:"nav_timeout_seconds"`
	ControlTimeoutSec int     `mapstructure:"control_timeout_seconds"`
	IdleTimeoutSec    int     `mapstructure:"idle_timeout_seconds"`
	IdleQuietMs       int     `mapstructure:"idle_quiet_ms"`
	SettleMs          int     `mapstructure:"settle_ms"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Headful           bool    `mapstructure:"headful"`
}

// SeasonWindow is a configured season's MM-DD-YYYY bounds.
type SeasonWindow struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// BackfillConfig governs the historical backfill.
type BackfillConfig struct {
	DelaySeconds float64                 `mapstructure:"delay_seconds"`
	Seasons      map[string]SeasonWindow `mapstructure:"seasons"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// ArchiveConfig selects where rendered pages are archived.
type ArchiveConfig struct {
	Driver    string `mapstructure:"driver"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// CacheConfig controls the latest-record cache.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// DaemonConfig controls the scheduled scraper and its ops server.
type DaemonConfig struct {
	Schedule string `mapstructure:"schedule"`
	Addr     string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", DefaultSourceURL)
	v.SetDefault("source.date_selector", "#ContentPlaceHolder1_ddlDate")
	v.SetDefault("source.submit_selector", "#ContentPlaceHolder1_btnSubmit")
	v.SetDefault("source.user_agent", "salmon-harvest-scraper/0.1")
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.control_timeout_seconds", 10)
	v.SetDefault("headless.idle_timeout_seconds", 15)
	v.SetDefault("headless.idle_quiet_ms", 500)
	v.SetDefault("headless.settle_ms", 2000)
	v.SetDefault("headless.requests_per_second", 0.5)
	v.SetDefault("headless.headful", false)
	v.SetDefault("backfill.delay_seconds", 2)
	v.SetDefault("storage.driver", storage.DriverSQLite)
	v.SetDefault("storage.sqlite_path", "data/harvest.db")
	v.SetDefault("storage.max_conns", 4)
	v.SetDefault("archive.driver", archive.DriverNone)
	v.SetDefault("archive.base_dir", "data/pages")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("cache.ttl_seconds", 900)
	v.SetDefault("daemon.schedule", "0 */2 * * *")
	v.SetDefault("daemon.addr", ":9090")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Source.DateSelector == "" || c.Source.SubmitSelector == "" {
		return fmt.Errorf("source.date_selector and source.submit_selector are required")
	}
	if c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0")
	}
	if c.Headless.ControlTimeoutSec <= 0 {
		return fmt.Errorf("headless.control_timeout_seconds must be > 0")
	}
	if c.Headless.IdleTimeoutSec <= 0 {
		return fmt.Errorf("headless.idle_timeout_seconds must be > 0")
	}
	if c.Headless.IdleQuietMs < 0 || c.Headless.SettleMs < 0 {
		return fmt.Errorf("headless.idle_quiet_ms and headless.settle_ms must be >= 0")
	}
	if c.Headless.RequestsPerSecond <= 0 || c.Headless.RequestsPerSecond > ratelimit.DefaultRequestsPerSecond {
		return fmt.Errorf("headless.requests_per_second must be in (0, %g]", ratelimit.DefaultRequestsPerSecond)
	}
	if c.BackfillDelay() < backfill.DefaultDelay {
		return fmt.Errorf("backfill.delay_seconds must be >= %g", backfill.DefaultDelay.Seconds())
	}
	if _, err := c.Seasons(); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case storage.DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case storage.DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q", storage.DriverSQLite, storage.DriverPostgres)
	}
	switch c.Archive.Driver {
	case archive.DriverNone, archive.DriverMemory:
	case archive.DriverLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local driver")
		}
	case archive.DriverGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs driver")
		}
	default:
		return fmt.Errorf("archive.driver %q is not supported", c.Archive.Driver)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.Daemon.Schedule == "" {
		return fmt.Errorf("daemon.schedule is required")
	}
	return nil
}

// Seasons merges configured season windows over harvest.DefaultSeasons.
func (c Config) Seasons() (map[int]harvest.SeasonRange, error) {
	out := make(map[int]harvest.SeasonRange, len(harvest.DefaultSeasons)+len(c.Backfill.Seasons))
	for season, r := range harvest.DefaultSeasons {
		out[season] = r
	}
	keys := make([]string, 0, len(c.Backfill.Seasons))
	for k := range c.Backfill.Seasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		season, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("backfill.seasons: %q is not a year", key)
		}
		w := c.Backfill.Seasons[key]
		r, err := harvest.NewSeasonRange(season, w.Start, w.End)
		if err != nil {
			return nil, fmt.Errorf("backfill.seasons: %w", err)
		}
		out[season] = r
	}
	return out, nil
}

// FetcherConfig converts the source and headless sections into a fetcher config.
func (c Config) FetcherConfig() headless.Config {
	return headless.Config{
		URL:               c.Source.URL,
		DateSelector:      c.Source.DateSelector,
		SubmitSelector:    c.Source.SubmitSelector,
		UserAgent:         c.Source.UserAgent,
		NavigationTimeout: time.Duration(c.Headless.NavTimeoutSec) * time.Second,
		ControlTimeout:    time.Duration(c.Headless.ControlTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(c.Headless.IdleTimeoutSec) * time.Second,
		IdleQuiet:         time.Duration(c.Headless.IdleQuietMs) * time.Millisecond,
		Settle:            time.Duration(c.Headless.SettleMs) * time.Millisecond,
	}
}

// RateLimit converts the headless request budget for the navigation limiter.
func (c Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{RequestsPerSecond: c.Headless.RequestsPerSecond, Burst: 1}
}

// BackfillDelay is the pause between consecutive dates.
func (c Config) BackfillDelay() time.Duration {
	return time.Duration(c.Backfill.DelaySeconds * float64(time.Second))
}

// CacheTTL is how long the latest record is served before a refresh.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// StorageOptions converts the storage section for storage.Open.
func (c Config) StorageOptions() storage.Config {
	return storage.Config{
		Driver:      c.Storage.Driver,
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		MaxConns:    c.Storage.MaxConns,
	}
}

// ArchiveOptions converts the archive section for archive.Open.
func (c Config) ArchiveOptions() archive.Config {
	return archive.Config{
		Driver:    c.Archive.Driver,
		BaseDir:   c.Archive.BaseDir,
		GCSBucket: c.Archive.GCSBucket,
		Prefix:    c.Archive.Prefix,
	}
}

// LoggingOptions converts the logging section for logging.New.
func (c Config) LoggingOptions() logging.Config {
	return logging.Config{Development: c.Logging.Development, Level: c.Logging.Level}
}
