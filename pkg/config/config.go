package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Redis
	Redis RedisConfig

	// Data sources
	Sources SourcesConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Output
	Output OutputConfig

	// API server
	APIAddr string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration
}

// SourceSettings holds one vendor's settings
type SourceSettings struct {
	Enabled   bool
	APIKey    string
	BaseURL   string
	RateLimit int // requests per minute
	Timeout   time.Duration
}

// SourcesConfig holds per-vendor settings
type SourcesConfig struct {
	Yahoo        SourceSettings
	Polygon      SourceSettings
	AlphaVantage SourceSettings
	FRED         SourceSettings
	HTML         SourceSettings
}

// OutputConfig holds report output settings
type OutputConfig struct {
	Format        string // table, csv, xlsx
	DateFormat    string
	DecimalPlaces int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile("")
	return build()
}

// LoadFrom reads configuration using an explicit .env path
func LoadFrom(path string) (*Config, error) {
	loadEnvFile(path)
	return build()
}

func build() (*Config, error) {
	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", "24h"),
		},

		Sources: SourcesConfig{
			Yahoo: SourceSettings{
				Enabled:   getEnvAsBool("YAHOO_ENABLED", true),
				BaseURL:   getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
				RateLimit: getEnvAsInt("YAHOO_RATE_LIMIT", 2000),
				Timeout:   getEnvAsDuration("YAHOO_TIMEOUT", "30s"),
			},
			Polygon: SourceSettings{
				Enabled:   getEnvAsBool("POLYGON_ENABLED", true),
				APIKey:    getEnv("POLYGON_API_KEY", ""),
				BaseURL:   getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
				RateLimit: getEnvAsInt("POLYGON_RATE_LIMIT", 5),
				Timeout:   getEnvAsDuration("POLYGON_TIMEOUT", "30s"),
			},
			AlphaVantage: SourceSettings{
				Enabled:   getEnvAsBool("ALPHA_VANTAGE_ENABLED", false),
				APIKey:    getEnv("ALPHA_VANTAGE_API_KEY", ""),
				BaseURL:   getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co"),
				RateLimit: getEnvAsInt("ALPHA_VANTAGE_RATE_LIMIT", 5),
				Timeout:   getEnvAsDuration("ALPHA_VANTAGE_TIMEOUT", "30s"),
			},
			FRED: SourceSettings{
				Enabled:   getEnvAsBool("FRED_ENABLED", false),
				APIKey:    getEnv("FRED_API_KEY", ""),
				BaseURL:   getEnv("FRED_BASE_URL", "https://api.stlouisfed.org"),
				RateLimit: getEnvAsInt("FRED_RATE_LIMIT", 120),
				Timeout:   getEnvAsDuration("FRED_TIMEOUT", "30s"),
			},
			HTML: SourceSettings{
				Enabled:   getEnvAsBool("HTML_SOURCE_ENABLED", false),
				BaseURL:   getEnv("HTML_SOURCE_BASE_URL", "https://finance.yahoo.com"),
				RateLimit: getEnvAsInt("HTML_SOURCE_RATE_LIMIT", 30),
				Timeout:   getEnvAsDuration("HTML_SOURCE_TIMEOUT", "30s"),
			},
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "warn"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		Output: OutputConfig{
			Format:        getEnv("OUTPUT_FORMAT", "csv"),
			DateFormat:    getEnv("OUTPUT_DATE_FORMAT", "2006-01-02"),
			DecimalPlaces: getEnvAsInt("OUTPUT_DECIMAL_PLACES", 2),
		},

		APIAddr: getEnv("API_ADDR", ":8089"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Output.Format {
	case "table", "csv", "xlsx":
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be one of: table, csv, xlsx")
	}

	if c.Output.DecimalPlaces < 0 {
		return fmt.Errorf("OUTPUT_DECIMAL_PLACES must be >= 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile(explicit string) {
	if explicit != "" {
		_ = godotenv.Load(explicit)
		return
	}

	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
