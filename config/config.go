// ABOUTME: Application configuration: defaults, optional YAML file, environment overrides, and validation.
// ABOUTME: Load is the only entry point; the result is validated before it is returned.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid configuration")

// Storage drivers.
const (
	StorageFile   = "file"
	StorageSqlite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "none"
)

// Generators.
const (
	GeneratorSimulated = "simulated"
	GeneratorOpenAI    = "openai"
)

// Config holds all application configuration.
type Config struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	Log        LogConfig        `yaml:"log"`
	Generation GenerationConfig `yaml:"generation"`
	History    HistoryConfig    `yaml:"history"`
	Sessions   SessionConfig    `yaml:"sessions"`
	Storage    StorageConfig    `yaml:"storage"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type GenerationConfig struct {
	Generator    string        `yaml:"generator" validate:"oneof=simulated openai"`
	Ticks        int           `yaml:"ticks" validate:"min=1"`
	TickInterval time.Duration `yaml:"tickInterval" validate:"gt=0"`
}

type HistoryConfig struct {
	Limit int `yaml:"limit" validate:"min=1"`
}

type SessionConfig struct {
	Max             int           `yaml:"max" validate:"min=1"`
	TTL             time.Duration `yaml:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanupInterval" validate:"gt=0"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=file sqlite redis none"`
	// Path is the directory for file storage or the database file for sqlite.
	Path      string `yaml:"path" validate:"required_if=Driver file,required_if=Driver sqlite"`
	RedisAddr string `yaml:"redisAddr" validate:"required_if=Driver redis"`
	RedisDB   int    `yaml:"redisDb" validate:"min=0"`
}

type OpenAIConfig struct {
	APIKey     string `yaml:"apiKey"`
	BaseURL    string `yaml:"baseUrl" validate:"omitempty,url"`
	Model      string `yaml:"model"`
	Size       string `yaml:"size"`
	MaxRetries int    `yaml:"maxRetries" validate:"min=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr: ":2389",
		Log:  LogConfig{Level: "info"},
		Generation: GenerationConfig{
			Generator:    GeneratorSimulated,
			Ticks:        5,
			TickInterval: time.Second,
		},
		History: HistoryConfig{Limit: 50},
		Sessions: SessionConfig{
			Max:             100,
			TTL:             time.Hour,
			CleanupInterval: time.Minute,
		},
		Storage: StorageConfig{Driver: StorageFile, Path: "./data"},
		OpenAI:  OpenAIConfig{MaxRetries: 2},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and environment variables, in increasing priority.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("FLOWCANVAS_ADDR", &cfg.Addr)
	str("FLOWCANVAS_LOG_LEVEL", &cfg.Log.Level)
	str("FLOWCANVAS_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("FLOWCANVAS_STORAGE_PATH", &cfg.Storage.Path)
	str("FLOWCANVAS_REDIS_ADDR", &cfg.Storage.RedisAddr)
	str("FLOWCANVAS_GENERATOR", &cfg.Generation.Generator)
	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)

	if v, ok := lookup("FLOWCANVAS_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	if v, ok := lookup("FLOWCANVAS_DEV"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: FLOWCANVAS_DEV: %v", ErrInvalid, err)
		}
		cfg.Log.Development = b
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Generation.Generator == GeneratorOpenAI && c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: the openai generator needs OPENAI_API_KEY", ErrInvalid)
	}
	return nil
}
