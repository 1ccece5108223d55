// Package config loads the blog's settings.
//
// LOAD ORDER (later wins):
//  1. built-in defaults (SetDefault below)
//  2. an optional YAML file (--config)
//  3. environment variables prefixed with BLOG_, e.g. BLOG_SESSION_SECRET
//
// A .env file in the working directory is loaded into the environment first
// (LoadDotEnv), so local development doesn't need exported variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/companyblog/internal/auth"
)

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "BLOG"

// Picture backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

const (
	DefaultPort           = 8080
	DefaultDBPath         = "data/blog.db"
	DefaultPictureDir     = "data/profile_pics"
	DefaultMaxUploadBytes = 2 << 20
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultS3Region       = "us-east-1"
)

type Config struct {
	Port          int           `mapstructure:"port"`
	DBPath        string        `mapstructure:"db_path"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "text" or "json"

	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	PictureBackend string `mapstructure:"picture_backend"`
	PictureDir     string `mapstructure:"picture_dir"`

	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3PublicURL string `mapstructure:"s3_public_url"`

	GitHubClientID     string `mapstructure:"github_client_id"`
	GitHubClientSecret string `mapstructure:"github_client_secret"`
	GitHubCallbackURL  string `mapstructure:"github_callback_url"`
}

// defaults doubles as the list of known keys: viper only consults the
// environment during Unmarshal for keys it already knows about.
var defaults = map[string]any{
	"port":                 DefaultPort,
	"db_path":              DefaultDBPath,
	"session_secret":       "",
	"session_ttl":          auth.DefaultSessionTTL,
	"secure_cookies":       false,
	"bcrypt_cost":          auth.DefaultCost,
	"log_level":            DefaultLogLevel,
	"log_format":           DefaultLogFormat,
	"max_upload_bytes":     DefaultMaxUploadBytes,
	"picture_backend":      BackendLocal,
	"picture_dir":          DefaultPictureDir,
	"s3_bucket":            "",
	"s3_region":            DefaultS3Region,
	"s3_endpoint":          "",
	"s3_access_key":        "",
	"s3_secret_key":        "",
	"s3_public_url":        "",
	"github_client_id":     "",
	"github_client_secret": "",
	"github_callback_url":  "",
}

// LoadDotEnv loads path (usually ".env") into the process environment.
// Variables that are already set are left alone. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration. configPath may be empty, in which case only
// defaults and the environment are used. The result is validated.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("config: db_path is required")
	}
	if len(c.SessionSecret) < auth.MinSecretLength {
		return fmt.Errorf("config: session_secret must be at least %d characters (set %s_SESSION_SECRET)",
			auth.MinSecretLength, EnvPrefix)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: session_ttl must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: max_upload_bytes must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: log_format must be 'text' or 'json', got %q", c.LogFormat)
	}

	switch c.PictureBackend {
	case BackendLocal:
		if c.PictureDir == "" {
			return errors.New("config: picture_dir is required for the local picture backend")
		}
	case BackendS3:
		if c.S3Bucket == "" || c.S3PublicURL == "" {
			return errors.New("config: s3_bucket and s3_public_url are required for the s3 picture backend")
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			return errors.New("config: both s3_access_key and s3_secret_key must be provided")
		}
	default:
		return fmt.Errorf("config: picture_backend must be '%s' or '%s', got %q", BackendLocal, BackendS3, c.PictureBackend)
	}

	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		return errors.New("config: both github_client_id and github_client_secret must be provided")
	}

	return nil
}

// GitHubEnabled reports whether "Sign in with GitHub" is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// CallbackURL is the configured GitHub callback, or the localhost default for
// the configured port.
func (c *Config) CallbackURL() string {
	if c.GitHubCallbackURL != "" {
		return c.GitHubCallbackURL
	}
	return fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
}

// NewLogger builds the application logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log_level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}
