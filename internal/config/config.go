// Package config загружает настройки сервера: YAML-файл (необязательный),
// поверх него переменные окружения.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config - все настройки сервера.
type Config struct {
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Storage: "memory" или "postgres"
	Storage     string `koanf:"storage"`
	DatabaseURL string `koanf:"database_url"`

	JWTSecret string `koanf:"jwt_secret"`

	SearchDefaultLimit int `koanf:"search_default_limit"`
	SearchMaxLimit     int `koanf:"search_max_limit"`
	CommentPageLimit   int `koanf:"comment_page_limit"`

	TracingEnabled    bool    `koanf:"tracing_enabled"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	EnvProduction = "production"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for postgres storage")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required in production")
	ErrUnknownStorage     = errors.New("STORAGE must be memory or postgres")
	ErrInvalidInt         = errors.New("must be a valid integer")
	ErrInvalidLimits      = errors.New("SEARCH_DEFAULT_LIMIT must not exceed SEARCH_MAX_LIMIT")
	ErrInvalidSampleRate  = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
)

const (
	DefaultPort               = 8080
	DefaultEnv                = "development"
	DefaultStorage            = StorageMemory
	DefaultSearchDefaultLimit = 10
	DefaultSearchMaxLimit     = 100
	DefaultCommentPageLimit   = 10
	DefaultTracingSampleRate  = 1.0
)

// Load читает файл (если задан), затем переменные окружения, которые имеют приоритет.
// Возвращает все найденные ошибки разом.
func Load(path string) (*Config, []error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", path, err)}
		}
	}

	var errs []error
	intOf := func(env, key string, def int) int {
		v, err := envInt(env, k.Int(key), def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Port:               intOf("PORT", "port", DefaultPort),
		Env:                envString("APP_ENV", k.String("env"), DefaultEnv),
		Storage:            envString("STORAGE", k.String("storage"), DefaultStorage),
		DatabaseURL:        envString("DATABASE_URL", k.String("database_url"), ""),
		JWTSecret:          envString("JWT_SECRET", k.String("jwt_secret"), ""),
		SearchDefaultLimit: intOf("SEARCH_DEFAULT_LIMIT", "search_default_limit", DefaultSearchDefaultLimit),
		SearchMaxLimit:     intOf("SEARCH_MAX_LIMIT", "search_max_limit", DefaultSearchMaxLimit),
		CommentPageLimit:   intOf("COMMENT_PAGE_LIMIT", "comment_page_limit", DefaultCommentPageLimit),
		OTLPEndpoint:       envString("OTLP_ENDPOINT", k.String("otlp_endpoint"), ""),
	}

	var err error
	if cfg.TracingEnabled, err = envBool("TRACING_ENABLED", k.Bool("tracing_enabled")); err != nil {
		errs = append(errs, err)
	}
	if cfg.TracingSampleRate, err = envFloat("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), k.Exists("tracing_sample_rate"), DefaultTracingSampleRate); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, cfg.Validate()...)
	return cfg, errs
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() []error {
	var errs []error
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	default:
		errs = append(errs, fmt.Errorf("%w, got %q", ErrUnknownStorage, c.Storage))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.SearchDefaultLimit > c.SearchMaxLimit {
		errs = append(errs, ErrInvalidLimits)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	return errs
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// LogSummary - настройки для логирования, секреты скрыты.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":         strconv.Itoa(c.Port),
		"env":          c.Env,
		"storage":      c.Storage,
		"database_url": mask(c.DatabaseURL),
		"jwt_secret":   mask(c.JWTSecret),
		"tracing":      strconv.FormatBool(c.TracingEnabled),
	}
}

func mask(s string) string {
	if s == "" {
		return "<not set>"
	}
	return "****"
}

func envString(env, fileVal, def string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	return def
}

func envInt(env string, fileVal, def int) (int, error) {
	if v := os.Getenv(env); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return def, fmt.Errorf("%s %w", env, ErrInvalidInt)
		}
		return i, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return def, nil
}

func envBool(env string, fileVal bool) (bool, error) {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fileVal, fmt.Errorf("%s must be a boolean", env)
		}
		return b, nil
	}
	return fileVal, nil
}

func envFloat(env string, fileVal float64, inFile bool, def float64) (float64, error) {
	if v := os.Getenv(env); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def, fmt.Errorf("%s must be a number", env)
		}
		return f, nil
	}
	if inFile {
		return fileVal, nil
	}
	return def, nil
}
