package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultQuoteAPIKey is the shared TwelveData demo key used when no key is configured.
const DefaultQuoteAPIKey = "demo"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Quotes   QuotesConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the listen address for the HTTP server
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration for the quote cache and session revocations
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers         []string
	SelectionsTopic string
	CatalogTopic    string
	GroupID         string
}

// Enabled reports whether any Kafka broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// AuthConfig holds the hosted auth provider settings
type AuthConfig struct {
	ProviderURL string
	AnonKey     string
	JWTSecret   string
	OAuthName   string
	RedirectURL string
}

// QuotesConfig holds the quote provider settings
type QuotesConfig struct {
	BaseURL         string
	APIKey          string
	Interval        string
	OutputSize      int
	RefreshInterval time.Duration
	Timeout         time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
	File  string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence over it.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: failed to load .env: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("SUPABASE_DB_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "watchlist"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:         getEnvList("KAFKA_BROKERS"),
			SelectionsTopic: getEnv("KAFKA_SELECTIONS_TOPIC", "watchlist-selections"),
			CatalogTopic:    getEnv("KAFKA_CATALOG_TOPIC", "stock-events"),
			GroupID:         getEnv("KAFKA_GROUP_ID", "stock-watchlist"),
		},
		Auth: AuthConfig{
			ProviderURL: strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			AnonKey:     getEnv("SUPABASE_ANON_KEY", ""),
			JWTSecret:   getEnv("SUPABASE_JWT_SECRET", ""),
			OAuthName:   getEnv("AUTH_OAUTH_PROVIDER", "google"),
			RedirectURL: getEnv("AUTH_REDIRECT_URL", "/dashboard"),
		},
		Quotes: QuotesConfig{
			BaseURL:         getEnv("TWELVEDATA_BASE_URL", "https://api.twelvedata.com"),
			APIKey:          getEnv("TWELVEDATA_API_KEY", DefaultQuoteAPIKey),
			Interval:        getEnv("QUOTES_INTERVAL", "1min"),
			OutputSize:      getEnvInt("QUOTES_OUTPUT_SIZE", 30),
			RefreshInterval: getEnvDuration("QUOTES_REFRESH_INTERVAL", 5*time.Minute),
			Timeout:         getEnvDuration("QUOTES_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string. A full URL
// (the hosted provider's direct database URL) wins over the individual parts.
func (d *DatabaseConfig) ConnectionString() string {
	if d.URL != "" {
		return d.URL
	}
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: invalid integer for %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("config: invalid duration for %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
