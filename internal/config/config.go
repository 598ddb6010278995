// Package config loads client configuration from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"filemanager/internal/api"
	"filemanager/internal/session"

	"gopkg.in/yaml.v3"
)

// FileEnv names the variable pointing at an optional YAML config file
const FileEnv = "FILEMANAGER_CONFIG"

// Session store backends
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	APIURL      string        `yaml:"api_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	Web          Web          `yaml:"web"`
	Session      Session      `yaml:"session"`
	Redis        Redis        `yaml:"redis"`
	Database     Database     `yaml:"database"`
	Verification Verification `yaml:"verification"`
	Log          Log          `yaml:"log"`
}

type Web struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Session struct {
	// Store is one of file, redis, postgres
	Store string `yaml:"store"`
	File  string `yaml:"file"`
	// TokenSourceOrder lists where login looks for the token, e.g. "body,header"
	TokenSourceOrder string `yaml:"token_source_order"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Database struct {
	URL string `yaml:"url"`
}

type Verification struct {
	RedirectDelay time.Duration `yaml:"redirect_delay"`
	VisitTTL      time.Duration `yaml:"visit_ttl"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	sessionFile, err := session.DefaultFilePath()
	if err != nil {
		sessionFile = session.DefaultFileName
	}

	return &Config{
		APIURL:      api.DefaultBaseURL,
		HTTPTimeout: 30 * time.Second,
		Web: Web{
			Port:           "5173",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Session: Session{
			Store:            StoreFile,
			File:             sessionFile,
			TokenSourceOrder: "body,header",
		},
		Redis: Redis{
			Addr: "localhost:6379",
		},
		Verification: Verification{
			RedirectDelay: 2 * time.Second,
			VisitTTL:      30 * time.Minute,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration and validates it
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.APIURL = GetEnvOrDefault("FILEMANAGER_API_URL", c.APIURL)
	c.Web.Port = GetEnvOrDefault("WEB_PORT", c.Web.Port)
	if origins := os.Getenv("WEB_ALLOWED_ORIGINS"); origins != "" {
		c.Web.AllowedOrigins = splitList(origins)
	}

	c.Session.Store = strings.ToLower(GetEnvOrDefault("SESSION_STORE", c.Session.Store))
	c.Session.File = GetEnvOrDefault("SESSION_FILE", c.Session.File)
	c.Session.TokenSourceOrder = GetEnvOrDefault("TOKEN_SOURCE_ORDER", c.Session.TokenSourceOrder)

	c.Redis.Addr = GetEnvOrDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = GetEnvOrDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Database.URL = GetEnvOrDefault("DATABASE_URL", c.Database.URL)

	c.Log.Level = GetEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = GetEnvOrDefault("LOG_FORMAT", c.Log.Format)

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.Redis.DB = db
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", &c.HTTPTimeout},
		{"VERIFY_REDIRECT_DELAY", &c.Verification.RedirectDelay},
		{"VERIFY_VISIT_TTL", &c.Verification.VisitTTL},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
		}
		*d.dst = parsed
	}

	return nil
}

// TokenOrder returns the configured token extraction order
func (c *Config) TokenOrder() ([]session.TokenExtractor, error) {
	return session.ParseOrder(c.Session.TokenSourceOrder)
}

// OpenSessionStore opens the configured session backend
func (c *Config) OpenSessionStore(ctx context.Context) (session.Store, error) {
	switch c.Session.Store {
	case StoreRedis:
		return session.NewRedisStore(c.Redis.Addr, c.Redis.Password, c.Redis.DB), nil
	case StorePostgres:
		return session.NewPostgresStore(ctx, c.Database.URL)
	case StoreFile, "":
		return session.NewFileStore(c.Session.File), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", c.Session.Store)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
