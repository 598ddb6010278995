package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"filemanager/internal/session"
)

// Validate reports every invalid or missing setting in one error
func (c *Config) Validate() error {
	var problems []string

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("FILEMANAGER_API_URL must be an http(s) URL, got %q", c.APIURL))
	}

	switch c.Session.Store {
	case StoreFile:
		if c.Session.File == "" {
			problems = append(problems, "SESSION_FILE is required for the file session store")
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			problems = append(problems, "REDIS_ADDR is required for the redis session store")
		}
	case StorePostgres:
		if c.Database.URL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres session store")
		}
	default:
		problems = append(problems, fmt.Sprintf("SESSION_STORE must be one of file, redis, postgres, got %q", c.Session.Store))
	}

	if _, err := session.ParseOrder(c.Session.TokenSourceOrder); err != nil {
		problems = append(problems, fmt.Sprintf("TOKEN_SOURCE_ORDER: %v", err))
	}

	if c.HTTPTimeout <= 0 {
		problems = append(problems, "HTTP_TIMEOUT must be positive")
	}
	if c.Verification.RedirectDelay < 0 {
		problems = append(problems, "VERIFY_REDIRECT_DELAY must not be negative")
	}
	if c.Verification.VisitTTL <= 0 {
		problems = append(problems, "VERIFY_VISIT_TTL must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
