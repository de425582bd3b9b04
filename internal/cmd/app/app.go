// Package app holds the pieces shared by every dbmanager sub-command: the
// global flags and the per-command session over the selected store.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"github.com/yidakee/partivotes/internal/admin"
	"github.com/yidakee/partivotes/internal/backup"
	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/export"
	"github.com/yidakee/partivotes/internal/metrics"
	"github.com/yidakee/partivotes/internal/model"
	storemetrics "github.com/yidakee/partivotes/internal/plugin/store/metrics"
	"github.com/yidakee/partivotes/internal/prompt"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"

	// Import store plugins to trigger init() registration
	_ "github.com/yidakee/partivotes/internal/plugin/store/memory"
	_ "github.com/yidakee/partivotes/internal/plugin/store/mongo"
)

// Flags returns the global flags, bound to cfg.
func Flags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{

		// ── Database ──────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "mongodb-uri",
			Category:    "Database:",
			Sources:     cli.EnvVars("MONGODB_URI"),
			Destination: &cfg.MongoURI,
			Value:       cfg.MongoURI,
			Usage:       "MongoDB connection URI; its path names the database",
		},
		&cli.StringFlag{
			Name:        "mongodb-user",
			Category:    "Database:",
			Sources:     cli.EnvVars("MONGODB_USER"),
			Destination: &cfg.MongoUser,
			Usage:       "MongoDB user name",
		},
		&cli.StringFlag{
			Name:        "mongodb-pass",
			Category:    "Database:",
			Sources:     cli.EnvVars("MONGODB_PASS"),
			Destination: &cfg.MongoPassword,
			Usage:       "MongoDB password",
		},
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Database:",
			Sources:     cli.EnvVars("PARTIVOTES_DB_KIND"),
			Destination: &cfg.DatastoreType,
			Value:       cfg.DatastoreType,
			Usage:       "Store backend (" + strings.Join(registrystore.Names(), "|") + ")",
		},
		&cli.DurationFlag{
			Name:        "connect-timeout",
			Category:    "Database:",
			Sources:     cli.EnvVars("PARTIVOTES_CONNECT_TIMEOUT"),
			Destination: &cfg.ConnectTimeout,
			Value:       cfg.ConnectTimeout,
			Usage:       "Timeout for connecting to the database",
		},

		// ── Files ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "backup-dir",
			Category:    "Files:",
			Sources:     cli.EnvVars("PARTIVOTES_BACKUP_DIR"),
			Destination: &cfg.BackupDir,
			Value:       cfg.BackupDir,
			Usage:       "Directory holding backup files",
		},
		&cli.IntFlag{
			Name:        "max-backups",
			Category:    "Files:",
			Sources:     cli.EnvVars("PARTIVOTES_MAX_BACKUPS"),
			Destination: &cfg.MaxBackups,
			Value:       cfg.MaxBackups,
			Usage:       "Number of backup files to keep",
		},
		&cli.StringFlag{
			Name:        "export-dir",
			Category:    "Files:",
			Sources:     cli.EnvVars("PARTIVOTES_EXPORT_DIR"),
			Destination: &cfg.ExportDir,
			Value:       cfg.ExportDir,
			Usage:       "Directory for CSV exports",
		},

		// ── Backup Mirror ─────────────────────────────────────────
		&cli.StringFlag{
			Name:        "backup-s3-bucket",
			Category:    "Backup Mirror:",
			Sources:     cli.EnvVars("PARTIVOTES_BACKUP_S3_BUCKET"),
			Destination: &cfg.BackupS3Bucket,
			Usage:       "S3 bucket receiving a copy of every backup; empty disables mirroring",
		},
		&cli.StringFlag{
			Name:        "backup-s3-prefix",
			Category:    "Backup Mirror:",
			Sources:     cli.EnvVars("PARTIVOTES_BACKUP_S3_PREFIX"),
			Destination: &cfg.BackupS3Prefix,
			Usage:       "Key prefix for mirrored backups",
		},
		&cli.BoolFlag{
			Name:        "backup-s3-path-style",
			Category:    "Backup Mirror:",
			Sources:     cli.EnvVars("PARTIVOTES_BACKUP_S3_PATH_STYLE"),
			Destination: &cfg.BackupS3PathStyle,
			Usage:       "Use path-style S3 addressing (MinIO, LocalStack)",
		},

		// ── Monitoring ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "metrics-push-url",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("PARTIVOTES_METRICS_PUSH_URL"),
			Destination: &cfg.MetricsPushURL,
			Usage:       "Prometheus Pushgateway URL; metrics are pushed after each command",
		},
		&cli.StringFlag{
			Name:        "metrics-labels",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("PARTIVOTES_METRICS_LABELS"),
			Destination: &cfg.MetricsLabels,
			Value:       cfg.MetricsLabels,
			Usage:       "Comma-separated key=value constant labels for all metrics",
		},
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("PARTIVOTES_LOG_LEVEL"),
			Destination: &cfg.LogLevel,
			Value:       cfg.LogLevel,
			Usage:       "Log level (debug|info|warn|error)",
		},
	}
}

// Before stores cfg in the context and applies logging and metrics settings.
func Before(cfg *config.Config) cli.BeforeFunc {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if level, err := log.ParseLevel(cfg.LogLevel); err != nil {
			log.Warn("Ignoring invalid log level", "level", cfg.LogLevel)
		} else {
			log.SetLevel(level)
		}
		labels, err := metrics.ParseMetricsLabels(cfg.MetricsLabels)
		if err != nil {
			log.Warn("Ignoring invalid metrics labels", "err", err)
			labels = nil
		}
		metrics.InitMetrics(labels)
		return config.WithContext(ctx, cfg), nil
	}
}

// Session is one command's view of the database and the engines over it.
type Session struct {
	Config   *config.Config
	Store    registrystore.PollStore
	Admin    *admin.Service
	Backups  *backup.Manager
	Exporter *export.Exporter
	Out      io.Writer
	// Confirm answers the confirmation questions of destructive operations.
	Confirm prompt.Confirmer
	// Terminal is the interactive terminal on stdin/stdout.
	Terminal *prompt.Terminal
}

// Open selects the configured store plugin and builds the engines over it.
func Open(ctx context.Context) (*Session, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		defaults := config.DefaultConfig()
		cfg = &defaults
		ctx = config.WithContext(ctx, cfg)
	}
	loader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	inner, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	return NewSession(ctx, cfg, storemetrics.Wrap(inner), os.Stdin, os.Stdout), nil
}

// NewSession builds a session over an already opened store.
func NewSession(ctx context.Context, cfg *config.Config, s registrystore.PollStore, in io.Reader, out io.Writer) *Session {
	var opts []backup.Option
	if up, err := backup.NewS3Uploader(ctx, cfg); err != nil {
		log.Warn("Backup mirror disabled", "err", err)
	} else if up != nil {
		opts = append(opts, backup.WithUploader(up))
	}
	term := prompt.NewTerminal(in, out)
	return &Session{
		Config:   cfg,
		Store:    s,
		Admin:    admin.New(s),
		Backups:  backup.NewManager(s, cfg, opts...),
		Exporter: export.New(s, cfg),
		Out:      out,
		Confirm:  term,
		Terminal: term,
	}
}

// Close releases the store and pushes metrics when a gateway is configured.
func (s *Session) Close(ctx context.Context) {
	if err := s.Store.Close(ctx); err != nil {
		log.Warn("Failed to close database connection", "err", err)
	}
	if s.Config.MetricsPushURL != "" {
		if err := metrics.Push(ctx, s.Config.MetricsPushURL); err != nil {
			log.Warn("Failed to push metrics", "url", s.Config.MetricsPushURL, "err", err)
		}
	}
}

// Printf writes to the session output.
func (s *Session) Printf(format string, args ...any) {
	fmt.Fprintf(s.Out, format, args...)
}

// Println writes a line to the session output.
func (s *Session) Println(args ...any) {
	fmt.Fprintln(s.Out, args...)
}

// reportedError marks a failure that has already been logged.
type reportedError struct {
	status model.OutcomeStatus
}

func (e *reportedError) Error() string { return e.status.String() }

// Report logs an outcome and returns a non-nil error unless it succeeded.
func Report(o model.Outcome) error {
	switch {
	case o.Status == model.Success:
		log.Info(capitalize(o.Detail))
		return nil
	case o.Status == model.Failure && o.Err == nil:
		log.Info("Operation " + o.Detail)
	case o.Status == model.PartialFailure:
		log.Warn("Operation partially failed", "detail", o.Detail, "err", o.Err)
	default:
		log.Error("Operation failed", "detail", o.Detail, "err", o.Err)
	}
	return &reportedError{status: o.Status}
}

// Fail logs err and returns it as already reported.
func Fail(msg string, err error) error {
	log.Error(msg, "err", err)
	return &reportedError{status: model.Failure}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	var reported *reportedError
	if errors.As(err, &reported) && reported.status == model.PartialFailure {
		return "partial_failure"
	}
	return "failure"
}

// Action wraps fn so it runs inside a freshly opened session. Failures are
// logged and never turn into a non-zero exit status.
func Action(fn func(ctx context.Context, cmd *cli.Command, s *Session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		s, err := Open(ctx)
		if err != nil {
			log.Error("Cannot open database", "err", err)
			metrics.ObserveCommand(cmd.Name, "failure")
			return nil
		}
		defer s.Close(ctx)
		Run(ctx, cmd, s, fn)
		return nil
	}
}

// Run executes fn against an open session and records its outcome.
func Run(ctx context.Context, cmd *cli.Command, s *Session, fn func(ctx context.Context, cmd *cli.Command, s *Session) error) {
	err := fn(ctx, cmd, s)
	Handle(cmd.Name, err)
	metrics.ObserveCommand(cmd.Name, outcomeLabel(err))
}

// Handle logs err unless it was already reported.
func Handle(operation string, err error) {
	var reported *reportedError
	if err != nil && !errors.As(err, &reported) {
		log.Error("Command failed", "command", operation, "err", err)
	}
}
