package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	StorageS3    = "s3"
	StorageLocal = "local"
)

type Config struct {
	ServerPort              string        `env:"SERVER_PORT" envDefault:"8000"`
	ServerReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ServerWriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ServerIdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout          time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"./state/videotube.db"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns     int32  `env:"DB_MIN_CONNS" envDefault:"1"`

	AccessTokenSecret      string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTokenTTL         time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenSecret     string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshTokenTTL        time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`
	BcryptCost             int           `env:"BCRYPT_COST" envDefault:"12"`
	RevokeOnRefreshReuse   bool          `env:"REVOKE_ON_REFRESH_REUSE" envDefault:"true"`
	RefreshRotationGrace   time.Duration `env:"REFRESH_ROTATION_GRACE" envDefault:"10s"`
	RevokeOnPasswordChange bool          `env:"REVOKE_ON_PASSWORD_CHANGE" envDefault:"true"`
	CookieSecure           bool          `env:"COOKIE_SECURE" envDefault:"true"`

	CORSOrigins      []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitRPM     int      `env:"RATE_LIMIT_RPM" envDefault:"100"`
	AuthRateLimitRPM int      `env:"AUTH_RATE_LIMIT_RPM" envDefault:"10"`

	MaxUploadSize       int64  `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`
	UploadTempDir       string `env:"UPLOAD_TEMP_DIR" envDefault:"./public/temp"`
	StorageDriver       string `env:"STORAGE_DRIVER" envDefault:"local"`
	LocalStorageRoot    string `env:"LOCAL_STORAGE_ROOT" envDefault:"./state/media"`
	LocalStorageBaseURL string `env:"LOCAL_STORAGE_BASE_URL" envDefault:"http://localhost:8000/media"`
	S3Region            string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket            string `env:"S3_BUCKET"`
	S3Endpoint          string `env:"S3_ENDPOINT"`
	S3AccessKey         string `env:"S3_ACCESS_KEY"`
	S3SecretKey         string `env:"S3_SECRET_KEY"`
	S3PublicBaseURL     string `env:"S3_PUBLIC_BASE_URL"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"pretty"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"videotube-api"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.AccessTokenSecret = strings.TrimSpace(c.AccessTokenSecret)
	c.RefreshTokenSecret = strings.TrimSpace(c.RefreshTokenSecret)

	origins := make([]string, 0, len(c.CORSOrigins))
	for _, origin := range c.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.CORSOrigins = origins
}

func (c *Config) Validate() error {
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}

	if c.RefreshTokenSecret == "" {
		return fmt.Errorf("REFRESH_TOKEN_SECRET is required")
	}

	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}

	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be shorter than REFRESH_TOKEN_EXPIRY")
	}

	if c.RefreshRotationGrace < 0 || c.RefreshRotationGrace >= c.RefreshTokenTTL {
		return fmt.Errorf("REFRESH_ROTATION_GRACE must be non-negative and shorter than REFRESH_TOKEN_EXPIRY")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.DatabaseDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	if strings.TrimSpace(c.UploadTempDir) == "" {
		return fmt.Errorf("UPLOAD_TEMP_DIR cannot be empty")
	}

	switch c.StorageDriver {
	case StorageLocal:
		if strings.TrimSpace(c.LocalStorageRoot) == "" {
			return fmt.Errorf("LOCAL_STORAGE_ROOT cannot be empty")
		}
	case StorageS3:
		if strings.TrimSpace(c.S3Bucket) == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
