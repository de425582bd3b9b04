package config

import (
	"context"
	"net/url"
	"strings"
	"time"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	DefaultMongoURI     = "mongodb://localhost:27017/partivotes"
	DefaultDatabaseName = "partivotes"
	DefaultMaxBackups   = 10
	DefaultListLimit    = 10
)

// Config holds all configuration for the database manager.
type Config struct {
	// MongoDB
	MongoURI       string
	MongoUser      string
	MongoPassword  string
	ConnectTimeout time.Duration

	// Datastore backend type: "mongo" or "memory".
	DatastoreType string

	// Backups
	BackupDir  string
	MaxBackups int

	// Optional S3 mirror for backup files.
	BackupS3Bucket    string
	BackupS3Prefix    string
	BackupS3PathStyle bool

	// CSV exports
	ExportDir string

	// Prometheus Pushgateway URL; empty disables pushing.
	MetricsPushURL string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all metrics. Values support ${VAR} expansion.
	MetricsLabels string

	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MongoURI:       DefaultMongoURI,
		ConnectTimeout: 10 * time.Second,
		DatastoreType:  "mongo",
		BackupDir:      "backups",
		MaxBackups:     DefaultMaxBackups,
		ExportDir:      "exports",
		MetricsLabels:  "service=dbmanager",
		LogLevel:       "info",
	}
}

// DatabaseName returns the database named by the path of the connection URI,
// or DefaultDatabaseName when the URI does not name one.
func (c *Config) DatabaseName() string {
	if c == nil {
		return DefaultDatabaseName
	}
	u, err := url.Parse(strings.TrimSpace(c.MongoURI))
	if err != nil {
		return DefaultDatabaseName
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return DefaultDatabaseName
	}
	return name
}

// HasCredentials reports whether both a user name and a password are configured.
func (c *Config) HasCredentials() bool {
	return c != nil && c.MongoUser != "" && c.MongoPassword != ""
}

// ResolvedMaxBackups returns the retention count, falling back to the default
// for non-positive values.
func (c *Config) ResolvedMaxBackups() int {
	if c == nil || c.MaxBackups <= 0 {
		return DefaultMaxBackups
	}
	return c.MaxBackups
}
