package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	EPIAS    EPIASConfig
	Market   MarketConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	Name               string
	SSLMode            string
	StatementTimeoutMS int
	MaxOpenConns       int
}

// GetDSN builds a keyword/value DSN. statement_timeout is passed through by
// pgx as a runtime parameter and bounds every query server side.
func (d DatabaseConfig) GetDSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	if d.StatementTimeoutMS > 0 {
		dsn += fmt.Sprintf(" statement_timeout=%d", d.StatementTimeoutMS)
	}
	return dsn
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

type CORSConfig struct {
	AllowedOrigins string
}

type EPIASConfig struct {
	Username       string
	Password       string
	BaseURL        string
	AuthURL        string
	RequestsPerSec int
}

// Enabled reports whether credentials for the transparency platform are set.
func (e EPIASConfig) Enabled() bool {
	return e.Username != "" && e.Password != ""
}

type MarketConfig struct {
	Timezone string
	Location *time.Location
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig reads the environment, after merging an optional .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	serverPort, err := getIntEnv("SERVER_PORT", 5001)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	stmtTimeout, err := getIntEnv("DB_STATEMENT_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_STATEMENT_TIMEOUT_MS: %w", err)
	}

	maxOpen, err := getIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rps, err := getIntEnv("EPIAS_REQUESTS_PER_SEC", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid EPIAS_REQUESTS_PER_SEC: %w", err)
	}

	tz := getEnv("MARKET_TIMEZONE", "Europe/Istanbul")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid MARKET_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               dbPort,
			User:               getEnv("DB_USER", "enerji"),
			Password:           getEnv("DB_PASSWORD", "enerji_dev_password"),
			Name:               getEnv("DB_NAME", "enerji"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			StatementTimeoutMS: stmtTimeout,
			MaxOpenConns:       maxOpen,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Channel:  getEnv("REDIS_CHANNEL", "enerji:live"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		EPIAS: EPIASConfig{
			Username:       getEnv("EPIAS_USERNAME", ""),
			Password:       getEnv("EPIAS_PASSWORD", ""),
			BaseURL:        getEnv("EPIAS_BASE_URL", "https://seffaflik.epias.com.tr/electricity-service"),
			AuthURL:        getEnv("EPIAS_AUTH_URL", "https://giris.epias.com.tr/cas/v1/tickets"),
			RequestsPerSec: rps,
		},
		Market: MarketConfig{
			Timezone: tz,
			Location: loc,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
