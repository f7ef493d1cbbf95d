package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Sportmonks SportmonksConfig `mapstructure:"sportmonks"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite | postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	URL             string        `mapstructure:"url"`    // postgres DSN
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

type SportmonksConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIToken     string        `mapstructure:"api_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	MaxBulkSize  int           `mapstructure:"max_bulk_size"`
	PerPage      int           `mapstructure:"per_page"`
	MaxPages     int           `mapstructure:"max_pages"` // 0 means unbounded
}

type EnrichConfig struct {
	BatchSize         int                `mapstructure:"batch_size"`
	Workers           int                `mapstructure:"workers"`
	InterBatchDelay   time.Duration      `mapstructure:"inter_batch_delay"`
	LongPauseInterval int                `mapstructure:"long_pause_interval"`
	LongPauseDelay    time.Duration      `mapstructure:"long_pause_delay"`
	RateLimitBackoff  time.Duration      `mapstructure:"rate_limit_backoff"`
	MaxParents        int                `mapstructure:"max_parents"`
	Threshold         float64            `mapstructure:"threshold"`
	Thresholds        map[string]float64 `mapstructure:"thresholds"` // per-target override
	MaxStoreFailures  int                `mapstructure:"max_store_failures"`
	Targets           []string           `mapstructure:"targets"`
	Collections       []string           `mapstructure:"collections"`
	FinalStatuses     []string           `mapstructure:"final_statuses"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets come from the environment
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("sportmonks.api_token", "SPORTMONKS_API_TOKEN")
	v.BindEnv("sportmonks.base_url", "SPORTMONKS_BASE_URL")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/matchsync.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("sportmonks.base_url", "https://api.sportmonks.com/v3/football")
	v.SetDefault("sportmonks.timeout", 30*time.Second)
	v.SetDefault("sportmonks.request_delay", 500*time.Millisecond)
	v.SetDefault("sportmonks.max_bulk_size", 10)
	v.SetDefault("sportmonks.per_page", 50)
	v.SetDefault("sportmonks.max_pages", 0)

	v.SetDefault("enrich.batch_size", 100)
	v.SetDefault("enrich.workers", 4)
	v.SetDefault("enrich.inter_batch_delay", 2*time.Second)
	v.SetDefault("enrich.long_pause_interval", 10)
	v.SetDefault("enrich.long_pause_delay", 30*time.Second)
	v.SetDefault("enrich.rate_limit_backoff", 60*time.Second)
	v.SetDefault("enrich.max_parents", 0)
	v.SetDefault("enrich.threshold", 0.8)
	v.SetDefault("enrich.max_store_failures", 3)
	v.SetDefault("enrich.targets", []string{"events", "lineups", "statistics"})
	v.SetDefault("enrich.collections", []string{"teams", "players", "transfers", "rounds", "stages"})
	v.SetDefault("enrich.final_statuses", []string{"FT", "AET", "FT_PEN"})

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.bucket", "matchsync-raw")
	v.SetDefault("archive.prefix", "runs")
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("database.url is required for postgres")
	}
	if c.Sportmonks.MaxBulkSize < 1 {
		return fmt.Errorf("sportmonks.max_bulk_size must be positive, got %d", c.Sportmonks.MaxBulkSize)
	}
	if c.Enrich.BatchSize < 1 {
		return fmt.Errorf("enrich.batch_size must be positive, got %d", c.Enrich.BatchSize)
	}
	if c.Enrich.Workers < 1 || c.Enrich.Workers > 8 {
		return fmt.Errorf("enrich.workers must be between 1 and 8, got %d", c.Enrich.Workers)
	}
	if c.Enrich.Threshold <= 0 || c.Enrich.Threshold > 1 {
		return fmt.Errorf("enrich.threshold must be in (0, 1], got %.2f", c.Enrich.Threshold)
	}
	for name, th := range c.Enrich.Thresholds {
		if th <= 0 || th > 1 {
			return fmt.Errorf("enrich.thresholds.%s must be in (0, 1], got %.2f", name, th)
		}
	}
	if c.Enrich.MaxParents < 0 {
		return fmt.Errorf("enrich.max_parents must not be negative")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when the archive is enabled")
	}
	return nil
}
