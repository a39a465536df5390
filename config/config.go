package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env  string
	Port string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	RedisURL       string
	ScanRateLimit  int
	ScanRateWindow time.Duration

	LogLevel    string
	LogEncoding string

	QRSize  int
	QRLevel string

	CORSAllowOrigins []string
	TrustedProxies   []string
	ShutdownTimeout  time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "qrticket")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "tickets.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SCAN_RATE_LIMIT", 60)
	v.SetDefault("SCAN_RATE_WINDOW", "1m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("QR_SIZE", 256)
	v.SetDefault("QR_LEVEL", "medium")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Env:  v.GetString("APP_ENV"),
		Port: v.GetString("PORT"),

		DBDriver:   strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),
		SQLitePath: v.GetString("SQLITE_PATH"),

		RedisURL:       strings.TrimSpace(v.GetString("REDIS_URL")),
		ScanRateLimit:  v.GetInt("SCAN_RATE_LIMIT"),
		ScanRateWindow: v.GetDuration("SCAN_RATE_WINDOW"),

		LogLevel:    v.GetString("LOG_LEVEL"),
		LogEncoding: v.GetString("LOG_ENCODING"),

		QRSize:  v.GetInt("QR_SIZE"),
		QRLevel: v.GetString("QR_LEVEL"),

		CORSAllowOrigins: splitList(v.GetString("CORS_ALLOW_ORIGINS")),
		TrustedProxies:   splitList(v.GetString("TRUSTED_PROXIES")),
		ShutdownTimeout:  v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.ScanRateLimit <= 0 {
		return fmt.Errorf("SCAN_RATE_LIMIT must be positive")
	}
	if c.ScanRateWindow <= 0 {
		return fmt.Errorf("SCAN_RATE_WINDOW must be a positive duration")
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func (c *Config) SQLiteDSN() string {
	return c.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (c *Config) Dialector() gorm.Dialector {
	if c.DBDriver == DriverSQLite {
		return sqlite.Open(c.SQLiteDSN())
	}
	return postgres.Open(c.PostgresDSN())
}

// MaxOpenConns is 1 for SQLite so writers queue on the pool instead of
// failing with SQLITE_BUSY.
func (c *Config) MaxOpenConns() int {
	if c.DBDriver == DriverSQLite {
		return 1
	}
	return 25
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
