package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	JWT        JWTConfig
	Auth       AuthConfig
	Analytics  AnalyticsConfig
	CORS       CORSConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ClickHouseConfig addresses the analytical event store over its HTTP interface.
type ClickHouseConfig struct {
	URL         string
	Database    string
	User        string
	Password    string
	EventsTable string
	Timeout     time.Duration
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// AuthConfig tunes auxiliary authentication behaviour. A non-positive
// sweep interval disables the expired refresh-token sweeper.
type AuthConfig struct {
	TokenSweepInterval time.Duration
}

// AnalyticsConfig governs cache behaviour for aggregate read endpoints.
type AnalyticsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.ClickHouse = ClickHouseConfig{
		URL:         v.GetString("CLICKHOUSE_URL"),
		Database:    v.GetString("CLICKHOUSE_DATABASE"),
		User:        v.GetString("CLICKHOUSE_USER"),
		Password:    v.GetString("CLICKHOUSE_PASSWORD"),
		EventsTable: v.GetString("CLICKHOUSE_EVENTS_TABLE"),
		Timeout:     parseDuration(v.GetString("CLICKHOUSE_TIMEOUT"), 2*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 30*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		TokenSweepInterval: parseDuration(v.GetString("AUTH_TOKEN_SWEEP_INTERVAL"), time.Hour),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled: v.GetBool("ANALYTICS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if cfg.Env == EnvProduction && cfg.JWT.Secret == "dev_secret" {
		return nil, errors.New("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "student_metrics")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CLICKHOUSE_URL", "http://localhost:8123")
	v.SetDefault("CLICKHOUSE_DATABASE", "default")
	v.SetDefault("CLICKHOUSE_USER", "default")
	v.SetDefault("CLICKHOUSE_PASSWORD", "")
	v.SetDefault("CLICKHOUSE_EVENTS_TABLE", "events")
	v.SetDefault("CLICKHOUSE_TIMEOUT", "2s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "30m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("AUTH_TOKEN_SWEEP_INTERVAL", "1h")

	v.SetDefault("ANALYTICS_CACHE_ENABLED", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "5m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
