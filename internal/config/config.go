package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/timmy/jobimport/internal/logger"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Import    ImportConfig    `mapstructure:"import"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
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
	Driver   string `mapstructure:"driver"` // postgres or sqlite
	URL      string `mapstructure:"url"`    // full DSN, wins over the parts below
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite file

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == "postgres" {
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.Name,
		}
		q := url.Values{}
		if c.SSLMode != "" {
			q.Set("sslmode", c.SSLMode)
		}
		u.RawQuery = q.Encode()
		return u.String()
	}
	if c.Path == "" {
		return "file::memory:?cache=shared"
	}
	return c.Path + "?_busy_timeout=5000"
}

type RedisConfig struct {
	URL    string `mapstructure:"url"` // empty disables redis
	Prefix string `mapstructure:"prefix"`
}

type ImportConfig struct {
	// APIKey guards the /import endpoints. Empty rejects every request.
	APIKey string `mapstructure:"api_key"`
}

type SourcesConfig struct {
	OsonIsh OsonIshConfig `mapstructure:"osonish"`
}

type OsonIshConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURLs          []string      `mapstructure:"base_urls"`
	ListPath          string        `mapstructure:"list_path"`
	DetailPath        string        `mapstructure:"detail_path"`
	PageSize          int           `mapstructure:"page_size"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

type PipelineConfig struct {
	MaxPages         int           `mapstructure:"max_pages"`
	Workers          int           `mapstructure:"workers"`
	TransformWorkers int           `mapstructure:"transform_workers"`
	OnlyWithContacts bool          `mapstructure:"only_with_contacts"`
	Snapshot         bool          `mapstructure:"snapshot"`
	SnapshotKeep     int           `mapstructure:"snapshot_keep"` // 0 keeps every snapshot
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
}

type SchedulerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Spec       string `mapstructure:"spec"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // s3, r2, s3compatible, memory; empty disables
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Environment string `mapstructure:"environment"`
	File        string `mapstructure:"file"`
	FileOnly    bool   `mapstructure:"file_only"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// Logger converts the log section for logger.New.
func (c LogConfig) Logger(service string) *logger.Config {
	return &logger.Config{
		Level:       c.Level,
		Format:      c.Format,
		ServiceName: service,
		Environment: c.Environment,
		File:        c.File,
		FileOnly:    c.FileOnly,
		MaxSizeMB:   c.MaxSizeMB,
		MaxBackups:  c.MaxBackups,
		MaxAgeDays:  c.MaxAgeDays,
		Compress:    c.Compress,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", false)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "jobs")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "./data/jobs.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.prefix", "jobimport:")

	v.SetDefault("sources.osonish.enabled", true)
	v.SetDefault("sources.osonish.base_urls", []string{"https://osonish.uz/api/v1", "https://osonish.uz/api"})
	v.SetDefault("sources.osonish.list_path", "/vacancies?page=%d&per_page=%d")
	v.SetDefault("sources.osonish.detail_path", "/vacancies/%s")
	v.SetDefault("sources.osonish.page_size", 50)
	v.SetDefault("sources.osonish.max_retries", 3)
	v.SetDefault("sources.osonish.retry_delay", "2s")
	v.SetDefault("sources.osonish.timeout", "20s")
	v.SetDefault("sources.osonish.requests_per_second", 5)
	v.SetDefault("sources.osonish.cache_ttl", "10m")

	v.SetDefault("pipeline.max_pages", 0)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.transform_workers", 4)
	v.SetDefault("pipeline.only_with_contacts", false)
	v.SetDefault("pipeline.snapshot", false)
	v.SetDefault("pipeline.snapshot_keep", 0)
	v.SetDefault("pipeline.lock_ttl", "2h")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "@every 6h")
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "job-snapshots")
	v.SetDefault("storage.prefix", "snapshots")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "local")
	v.SetDefault("log.file", "/var/log/jobimport/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
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

	// Secrets and platform-provided settings
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("import.api_key", "IMPORT_API_KEY")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.environment", "APP_ENV")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Sources.OsonIsh.Enabled && len(c.Sources.OsonIsh.BaseURLs) == 0 {
		return fmt.Errorf("sources.osonish.base_urls must not be empty")
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler.spec is required when the scheduler is enabled")
	}
	return nil
}
