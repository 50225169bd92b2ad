// Package config provides layered configuration loading and validation.
//
// Values come from built-in defaults, then an optional YAML file, then
// environment variables. A .env file is loaded by the CLI before Load runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // scheduler timezones must resolve in minimal containers

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/transcript-archiver/internal/types"
)

const (
	// ConfigPathEnv names the YAML file used when no --config flag is given.
	ConfigPathEnv = "TRANSCRIPT_CONFIG"

	defaultTimezone = "UTC"
	defaultDelay    = 3 * time.Second
)

// Storage backends.
const (
	BackendGitHub   = "github"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Listing sources for channel uploads.
const (
	ListingAPI  = "api"
	ListingFeed = "feed"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Storage   StorageConfig   `yaml:"storage"`
	Download  DownloadConfig  `yaml:"download"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port       int    `yaml:"port" validate:"min=1,max=65535"`
	CORSOrigin string `yaml:"corsOrigin"`
}

// YouTubeConfig controls channel resolution and transcript retrieval.
type YouTubeConfig struct {
	APIKey         string        `yaml:"apiKey"`
	APIKeyFile     string        `yaml:"apiKeyFile"`
	Language       string        `yaml:"language" validate:"required"`
	Listing        string        `yaml:"listing" validate:"oneof=api feed"`
	UseBrowser     bool          `yaml:"useBrowser"`
	BrowserTimeout time.Duration `yaml:"browserTimeout" validate:"gte=0"`
	RequestTimeout time.Duration `yaml:"requestTimeout" validate:"gte=0"`
}

// StorageConfig selects and configures the transcript store.
type StorageConfig struct {
	Backend     string       `yaml:"backend" validate:"oneof=github postgres sqlite"`
	GitHub      GitHubConfig `yaml:"github"`
	DatabaseURL string       `yaml:"databaseUrl"`
	SQLitePath  string       `yaml:"sqlitePath"`
}

// GitHubConfig addresses the repository used as a transcript store.
type GitHubConfig struct {
	Token  string `yaml:"token"`
	Owner  string `yaml:"owner"`
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
	// BaseURL overrides the API endpoint, mainly for GitHub Enterprise.
	BaseURL string `yaml:"baseUrl"`
}

// DownloadConfig holds pipeline defaults.
type DownloadConfig struct {
	Delay time.Duration `yaml:"delay" validate:"gte=0"`
}

// SchedulerConfig controls recurring jobs.
type SchedulerConfig struct {
	Enabled      bool           `yaml:"enabled"`
	JobsFile     string         `yaml:"jobsFile" validate:"required"`
	Timezone     string         `yaml:"timezone"`
	CatchupDelay time.Duration  `yaml:"catchupDelay" validate:"gte=0"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=auto console json"`
}

// AuthConfig guards mutating HTTP routes behind an admin token.
type AuthConfig struct {
	Enabled           bool   `yaml:"enabled"`
	AdminPasswordHash string `yaml:"adminPasswordHash"`
	JWTSecret         string `yaml:"jwtSecret"`
	ExpirationHours   int    `yaml:"expirationHours"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080, CORSOrigin: "*"},
		YouTube: YouTubeConfig{
			APIKeyFile:     ".api_key",
			Language:       "en",
			Listing:        ListingAPI,
			BrowserTimeout: 60 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:    BackendGitHub,
			GitHub:     GitHubConfig{Branch: "main"},
			SQLitePath: "transcripts.db",
		},
		Download: DownloadConfig{Delay: defaultDelay},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			JobsFile:     "scheduled_jobs.json",
			Timezone:     defaultTimezone,
			CatchupDelay: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		Auth:    AuthConfig{ExpirationHours: 24},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (or $TRANSCRIPT_CONFIG when path is empty) and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.bindTimezone(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.YouTube.APIKey, "YOUTUBE_API_KEY")
	setString(&c.YouTube.APIKeyFile, "YOUTUBE_API_KEY_FILE")
	setString(&c.YouTube.Language, "TRANSCRIPT_LANGUAGE")
	setString(&c.YouTube.Listing, "YOUTUBE_LISTING")

	setString(&c.Storage.Backend, "STORAGE_BACKEND")
	setString(&c.Storage.DatabaseURL, "DATABASE_URL")
	setString(&c.Storage.SQLitePath, "SQLITE_PATH")
	setString(&c.Storage.GitHub.Token, "GITHUB_TOKEN")
	setString(&c.Storage.GitHub.Owner, "GITHUB_REPO_OWNER")
	setString(&c.Storage.GitHub.Repo, "GITHUB_REPO_NAME")
	setString(&c.Storage.GitHub.Branch, "GITHUB_BRANCH")

	setString(&c.Scheduler.JobsFile, "JOBS_FILE")
	setString(&c.Scheduler.Timezone, "SCHEDULER_TIMEZONE")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	setString(&c.Auth.AdminPasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return configError("invalid PORT: %v", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DOWNLOAD_DELAY"); v != "" {
		d, err := ParseDelay(v)
		if err != nil {
			return configError("invalid DOWNLOAD_DELAY: %v", err)
		}
		c.Download.Delay = d
	}
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return configError("invalid AUTH_ENABLED: %v", err)
		}
		c.Auth.Enabled = enabled
	}
	if v := os.Getenv("JWT_EXPIRATION_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return configError("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		c.Auth.ExpirationHours = hours
	}
	return nil
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return configError("unknown scheduler timezone %q", tz)
	}
	c.Scheduler.location = loc
	return nil
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return configError("invalid %s: failed %q", fe.Namespace(), fe.Tag())
		}
		return configError("%v", err)
	}
	if c.Auth.Enabled {
		if c.Auth.AdminPasswordHash == "" {
			return configError("auth enabled but ADMIN_PASSWORD_HASH is not set")
		}
		if c.Auth.JWTSecret == "" {
			return configError("auth enabled but JWT_SECRET is not set")
		}
	}
	return nil
}

// ParseDelay accepts either a Go duration ("1500ms") or a number of seconds ("3", "2.5").
func ParseDelay(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("delay must be non-negative")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("delay must be non-negative")
	}
	return d, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func configError(format string, args ...any) error {
	return types.NewError(types.KindConfiguration, fmt.Sprintf(format, args...), nil)
}
