package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Source kinds.
const (
	SourceStrapi   = "strapi"
	SourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Source    SourceConfig    `mapstructure:"source"`
	Strapi    StrapiConfig    `mapstructure:"strapi"`
	Map       MapConfig       `mapstructure:"map"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// SourceConfig selects where the API reads listings from.
type SourceConfig struct {
	Kind string `mapstructure:"kind"`
}

type StrapiConfig struct {
	URL            string `mapstructure:"url"`
	APIToken       string `mapstructure:"api_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	PageSize       int    `mapstructure:"page_size"`
}

func (s StrapiConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// MapConfig carries the camera defaults handed to every map session.
type MapConfig struct {
	AccessToken   string  `mapstructure:"access_token"`
	DefaultLat    float64 `mapstructure:"default_lat"`
	DefaultLng    float64 `mapstructure:"default_lng"`
	DefaultZoom   float64 `mapstructure:"default_zoom"`
	FocusZoom     float64 `mapstructure:"focus_zoom"`
	FitPadding    int     `mapstructure:"fit_padding"`
	FitDurationMS int     `mapstructure:"fit_duration_ms"`
	FlyDurationMS int     `mapstructure:"fly_duration_ms"`
	InitialFit    bool    `mapstructure:"initial_fit"`
}

type CacheConfig struct {
	ListingsTTLSeconds int `mapstructure:"listings_ttl_seconds"`
}

func (c CacheConfig) ListingsTTL() time.Duration {
	return time.Duration(c.ListingsTTLSeconds) * time.Second
}

type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing order of precedence.
func Load(service string) (*Config, error) {
	// .env only seeds variables that are not already set
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CASAVIEW_STRAPI_URL → strapi.url
	v.SetEnvPrefix("CASAVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "casaview")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "casaview")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("source.kind", SourcePostgres)
	v.SetDefault("strapi.url", "http://localhost:1337")
	v.SetDefault("strapi.api_token", "")
	v.SetDefault("strapi.timeout_seconds", 10)
	v.SetDefault("strapi.page_size", 100)
	v.SetDefault("map.access_token", "")
	v.SetDefault("map.default_lat", 37.12120)
	v.SetDefault("map.default_lng", -7.64946)
	v.SetDefault("map.default_zoom", 10)
	v.SetDefault("map.focus_zoom", 14)
	v.SetDefault("map.fit_padding", 50)
	v.SetDefault("map.fit_duration_ms", 1000)
	v.SetDefault("map.fly_duration_ms", 1000)
	v.SetDefault("map.initial_fit", true)
	v.SetDefault("cache.listings_ttl_seconds", 60)
	v.SetDefault("sync.interval", 5*time.Minute)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	switch c.Source.Kind {
	case SourceStrapi, SourcePostgres:
	default:
		errs = append(errs, fmt.Sprintf("source.kind must be %q or %q, got %q", SourceStrapi, SourcePostgres, c.Source.Kind))
	}
	if c.Strapi.URL == "" {
		errs = append(errs, "strapi.url is required")
	}
	if c.Strapi.TimeoutSeconds <= 0 {
		errs = append(errs, "strapi.timeout_seconds must be positive")
	}
	if c.Strapi.PageSize <= 0 || c.Strapi.PageSize > 100 {
		errs = append(errs, fmt.Sprintf("strapi.page_size must be 1-100, got %d", c.Strapi.PageSize))
	}

	if math.Abs(c.Map.DefaultLat) > 90 {
		errs = append(errs, fmt.Sprintf("map.default_lat must be within ±90, got %g", c.Map.DefaultLat))
	}
	if math.Abs(c.Map.DefaultLng) > 180 {
		errs = append(errs, fmt.Sprintf("map.default_lng must be within ±180, got %g", c.Map.DefaultLng))
	}
	if c.Map.DefaultZoom < 0 || c.Map.DefaultZoom > 22 {
		errs = append(errs, fmt.Sprintf("map.default_zoom must be 0-22, got %g", c.Map.DefaultZoom))
	}
	if c.Map.FocusZoom < 0 || c.Map.FocusZoom > 22 {
		errs = append(errs, fmt.Sprintf("map.focus_zoom must be 0-22, got %g", c.Map.FocusZoom))
	}
	if c.Map.FitPadding < 0 {
		errs = append(errs, "map.fit_padding must not be negative")
	}
	if c.Map.FitDurationMS < 0 || c.Map.FlyDurationMS < 0 {
		errs = append(errs, "map animation durations must not be negative")
	}

	if c.Cache.ListingsTTLSeconds <= 0 {
		errs = append(errs, "cache.listings_ttl_seconds must be positive")
	}
	if c.Sync.Interval < time.Second {
		errs = append(errs, fmt.Sprintf("sync.interval must be at least 1s, got %s", c.Sync.Interval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
