package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// historyStartLayout is the date layout of sync.history_start
const historyStartLayout = "2006-01-02"

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Scheduler   SchedulerConfig
	Storage     StorageConfig
	Telemetry   TelemetryConfig
	Marketplace MarketplaceConfig
	Sync        SyncConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// Enabled switches the sync lease and progress fan-out to Redis
	Enabled bool
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds the bearer verification settings of the trigger endpoints
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	SSEMaxClients  int
	SSEHeartbeat   time.Duration
	TrustedProxies []string
	// TriggerPerMinute and TriggerBurst bound POST /api/v1/sync per client
	TriggerPerMinute float64
	TriggerBurst     int
}

// SchedulerConfig holds the periodic sync trigger configuration
type SchedulerConfig struct {
	Enabled       bool
	Interval      time.Duration
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	HistoryLimit  int
}

// StorageConfig holds S3-compatible object storage settings used for raw payload archives
type StorageConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
}

// MarketplaceConfig holds the marketplace API settings
type MarketplaceConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBase    time.Duration
	ClientID     string
	ClientSecret string
}

// SyncConfig holds the order sync engine settings
type SyncConfig struct {
	HistoryStart        time.Time
	InitialLookbackDays int
	HistoricalChunkDays int
	RecentHours         int
	PageSize            int
	MaxResultsPerRange  int
	MaxSplitDepth       int
	MinRangeDuration    time.Duration
	MaxPageOffset       int
	PersistConcurrency  int
	DetailRatePerSecond float64
	DetailBurst         int
	LeaseTTL            time.Duration
	TokenRefreshSkew    time.Duration
	ArchiveRawPayloads  bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ORDERSYNC_ prefix (e.g., ORDERSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ORDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

// fromViper builds the config from an already populated viper instance
func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Enabled:  v.GetBool("redis.enabled"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			SSEMaxClients:  v.GetInt("http.sse_max_clients"),
			SSEHeartbeat:   v.GetDuration("http.sse_heartbeat"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),

			TriggerPerMinute: v.GetFloat64("http.trigger_per_minute"),
			TriggerBurst:     v.GetInt("http.trigger_burst"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			Interval:      v.GetDuration("scheduler.interval"),
			Workers:       v.GetInt("scheduler.workers"),
			QueueSize:     v.GetInt("scheduler.queue_size"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			RetryAttempts: v.GetInt("scheduler.retry_attempts"),
			RetryDelay:    v.GetDuration("scheduler.retry_delay"),
			HistoryLimit:  v.GetInt("scheduler.history_limit"),
		},
		Storage: StorageConfig{
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Marketplace: MarketplaceConfig{
			BaseURL:      v.GetString("marketplace.base_url"),
			Timeout:      v.GetDuration("marketplace.timeout"),
			MaxAttempts:  v.GetInt("marketplace.max_attempts"),
			RetryBase:    v.GetDuration("marketplace.retry_base"),
			ClientID:     v.GetString("marketplace.client_id"),
			ClientSecret: v.GetString("marketplace.client_secret"),
		},
		Sync: SyncConfig{
			InitialLookbackDays: v.GetInt("sync.initial_lookback_days"),
			HistoricalChunkDays: v.GetInt("sync.historical_chunk_days"),
			RecentHours:         v.GetInt("sync.recent_hours"),
			PageSize:            v.GetInt("sync.page_size"),
			MaxResultsPerRange:  v.GetInt("sync.max_results_per_range"),
			MaxSplitDepth:       v.GetInt("sync.max_split_depth"),
			MinRangeDuration:    v.GetDuration("sync.min_range_duration"),
			MaxPageOffset:       v.GetInt("sync.max_page_offset"),
			PersistConcurrency:  v.GetInt("sync.persist_concurrency"),
			DetailRatePerSecond: v.GetFloat64("sync.detail_rate_per_second"),
			DetailBurst:         v.GetInt("sync.detail_burst"),
			LeaseTTL:            v.GetDuration("sync.lease_ttl"),
			TokenRefreshSkew:    v.GetDuration("sync.token_refresh_skew"),
			ArchiveRawPayloads:  v.GetBool("sync.archive_raw_payloads"),
		},
	}

	if s := v.GetString("sync.history_start"); s != "" {
		start, err := time.Parse(historyStartLayout, s)
		if err != nil {
			return nil, fmt.Errorf("sync.history_start must be a YYYY-MM-DD date: %w", err)
		}
		cfg.Sync.HistoryStart = start
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ordersync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "ordersync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "ordersync"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// WriteTimeout stays 0 by default: SSE streams outlive any fixed write deadline
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.TriggerPerMinute == 0 {
		cfg.HTTP.TriggerPerMinute = 6
	}
	if cfg.HTTP.TriggerBurst == 0 {
		cfg.HTTP.TriggerBurst = 3
	}
	if cfg.HTTP.SSEMaxClients == 0 {
		cfg.HTTP.SSEMaxClients = 100
	}
	if cfg.HTTP.SSEHeartbeat == 0 {
		cfg.HTTP.SSEHeartbeat = 30 * time.Second
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 15 * time.Minute
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 1
	}
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = 16
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = time.Minute
	}
	if cfg.Scheduler.HistoryLimit == 0 {
		cfg.Scheduler.HistoryLimit = 100
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "raw-orders"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ordersync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Marketplace.BaseURL == "" {
		cfg.Marketplace.BaseURL = "https://api.mercadolibre.com"
	}
	if cfg.Marketplace.Timeout == 0 {
		cfg.Marketplace.Timeout = 30 * time.Second
	}
	if cfg.Marketplace.MaxAttempts == 0 {
		cfg.Marketplace.MaxAttempts = 3
	}
	if cfg.Marketplace.RetryBase == 0 {
		cfg.Marketplace.RetryBase = time.Second
	}
	applySyncDefaults(&cfg.Sync)
}

func applySyncDefaults(s *SyncConfig) {
	if s.HistoryStart.IsZero() {
		s.HistoryStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if s.InitialLookbackDays == 0 {
		s.InitialLookbackDays = 90
	}
	if s.HistoricalChunkDays == 0 {
		s.HistoricalChunkDays = 30
	}
	if s.RecentHours == 0 {
		s.RecentHours = 48
	}
	if s.PageSize == 0 {
		s.PageSize = 50
	}
	if s.MaxResultsPerRange == 0 {
		s.MaxResultsPerRange = 1000
	}
	if s.MaxSplitDepth == 0 {
		s.MaxSplitDepth = 12
	}
	if s.MinRangeDuration == 0 {
		s.MinRangeDuration = time.Minute
	}
	if s.MaxPageOffset == 0 {
		s.MaxPageOffset = 10000
	}
	if s.PersistConcurrency == 0 {
		s.PersistConcurrency = 10
	}
	if s.DetailRatePerSecond == 0 {
		s.DetailRatePerSecond = 20
	}
	if s.DetailBurst == 0 {
		s.DetailBurst = 20
	}
	if s.LeaseTTL == 0 {
		s.LeaseTTL = 30 * time.Minute
	}
	if s.TokenRefreshSkew == 0 {
		s.TokenRefreshSkew = 5 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if u, err := url.Parse(c.Marketplace.BaseURL); err != nil || u.Host == "" {
		return fmt.Errorf("marketplace.base_url must be an absolute URL, got %q", c.Marketplace.BaseURL)
	}
	if c.Marketplace.MaxAttempts < 1 {
		return fmt.Errorf("marketplace.max_attempts must be at least 1")
	}

	if c.Sync.MaxPageOffset < c.Sync.PageSize {
		return fmt.Errorf("sync.max_page_offset (%d) must be at least sync.page_size (%d)",
			c.Sync.MaxPageOffset, c.Sync.PageSize)
	}
	if c.Sync.PersistConcurrency < 1 {
		return fmt.Errorf("sync.persist_concurrency must be positive")
	}
	if c.Sync.ArchiveRawPayloads && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when sync.archive_raw_payloads is enabled")
	}

	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be positive")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
