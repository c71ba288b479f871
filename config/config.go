package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string   `validate:"required"`
	LogLevel    string   `validate:"required,oneof=debug info warn error"`
	CORSOrigins []string `validate:"dive,url"`

	DatabaseURL string `validate:"required"`

	RedisAddress          string `validate:"required,hostname_port"`
	RedisPassword         string
	RedisDB               int `validate:"gte=0"`
	SubmissionLimitPerDay int `validate:"gt=0"`

	Storage StorageConfig

	MongoURI      string
	MongoDatabase string `validate:"required_with=MongoURI"`

	JWTSecret      string        `validate:"required,min=16"`
	JWTTTL         time.Duration `validate:"gt=0"`
	AuthSyncSecret string        `validate:"required,min=16"`

	Upload UploadConfig
}

type StorageConfig struct {
	Endpoint  string `validate:"required"`
	AccessKey string `validate:"required"`
	SecretKey string `validate:"required"`
	Bucket    string `validate:"required"`
	UseSSL    bool
}

type UploadConfig struct {
	MinBytes        int64         `validate:"gt=0"`
	MaxBytes        int64         `validate:"gtfield=MinBytes"`
	TTL             time.Duration `validate:"gt=0"`
	PreviewMaxWidth int           `validate:"gt=0"`
	MaxPixels       int64         `validate:"gt=0"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, bool, error) {
	envLoaded := godotenv.Load() == nil

	cfg := Config{
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSOrigins:           splitList(os.Getenv("CORS_ORIGINS")),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddress:          os.Getenv("REDIS_ADDRESS"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		MongoURI:              os.Getenv("MONGODB_URI"),
		MongoDatabase:         getEnv("MONGODB_DATABASE", "circuspes"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		AuthSyncSecret:        os.Getenv("AUTH_SYNC_SECRET"),
		SubmissionLimitPerDay: 50,
		JWTTTL:                72 * time.Hour,
		Storage: StorageConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    os.Getenv("S3_BUCKET"),
		},
		Upload: UploadConfig{
			MinBytes:        1024,
			MaxBytes:        10 << 20,
			TTL:             5 * time.Minute,
			PreviewMaxWidth: 1024,
			MaxPixels:       40_000_000,
		},
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, envLoaded, err
	}
	if cfg.SubmissionLimitPerDay, err = getEnvInt("SUBMISSION_LIMIT_PER_DAY", cfg.SubmissionLimitPerDay); err != nil {
		return Config{}, envLoaded, err
	}
	if cfg.JWTTTL, err = getEnvDuration("JWT_TTL", cfg.JWTTTL); err != nil {
		return Config{}, envLoaded, err
	}
	if cfg.Storage.UseSSL, err = getEnvBool("S3_USE_SSL", false); err != nil {
		return Config{}, envLoaded, err
	}
	minBytes, err := getEnvInt("UPLOAD_MIN_BYTES", int(cfg.Upload.MinBytes))
	if err != nil {
		return Config{}, envLoaded, err
	}
	maxBytes, err := getEnvInt("UPLOAD_MAX_BYTES", int(cfg.Upload.MaxBytes))
	if err != nil {
		return Config{}, envLoaded, err
	}
	cfg.Upload.MinBytes, cfg.Upload.MaxBytes = int64(minBytes), int64(maxBytes)
	if cfg.Upload.TTL, err = getEnvDuration("UPLOAD_TTL", cfg.Upload.TTL); err != nil {
		return Config{}, envLoaded, err
	}
	if cfg.Upload.PreviewMaxWidth, err = getEnvInt("PREVIEW_MAX_WIDTH", cfg.Upload.PreviewMaxWidth); err != nil {
		return Config{}, envLoaded, err
	}
	maxPixels, err := getEnvInt("UPLOAD_MAX_PIXELS", int(cfg.Upload.MaxPixels))
	if err != nil {
		return Config{}, envLoaded, err
	}
	cfg.Upload.MaxPixels = int64(maxPixels)

	if err := cfg.Validate(); err != nil {
		return Config{}, envLoaded, err
	}
	return cfg, envLoaded, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
