// Package backup writes JSON snapshots of the polls and votes collections,
// keeps a bounded number of them on disk and restores them.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/metrics"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"github.com/yidakee/partivotes/internal/tempfiles"
)

const (
	filePrefix = "partivotes_backup_"
	fileSuffix = ".json"
	nameLayout = "20060102_150405"
)

// File describes a backup file on disk.
type File struct {
	Name string
	Path string
	// CreatedAt is parsed from the file name; zero when the name does not
	// carry a timestamp.
	CreatedAt time.Time
	ModTime   time.Time
	Size      int64
}

// Result reports a completed backup.
type Result struct {
	File
	Polls int
	Votes int
}

// Uploader mirrors a finished backup file somewhere off the machine.
type Uploader interface {
	Upload(ctx context.Context, name, path string) error
}

// Manager owns the backup directory.
type Manager struct {
	store    registrystore.PollStore
	dir      string
	keep     int
	uploader Uploader
	now      func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithUploader mirrors every new backup through u.
func WithUploader(u Uploader) Option {
	return func(m *Manager) { m.uploader = u }
}

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager writing to cfg.BackupDir.
func NewManager(s registrystore.PollStore, cfg *config.Config, opts ...Option) *Manager {
	dir := "backups"
	if cfg != nil && strings.TrimSpace(cfg.BackupDir) != "" {
		dir = cfg.BackupDir
	}
	m := &Manager{
		store: s,
		dir:   dir,
		keep:  cfg.ResolvedMaxBackups(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the backup directory.
func (m *Manager) Dir() string { return m.dir }

// Create snapshots both collections into a new file and then rotates old
// backups. Rotation and mirroring problems are logged, not returned.
func (m *Manager) Create(ctx context.Context) (*Result, error) {
	polls, err := m.store.AllPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read polls: %w", err)
	}
	votes, err := m.store.AllVotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read votes: %w", err)
	}
	snap := NewSnapshot(polls, votes)

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	created := m.now()
	path, err := m.nextPath(created)
	if err != nil {
		return nil, err
	}
	size, err := tempfiles.WriteFile(path, func(w io.Writer) error {
		return snap.Encode(w)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	metrics.RecordBackup(size)

	res := &Result{
		File: File{
			Name:      filepath.Base(path),
			Path:      path,
			CreatedAt: created.Truncate(time.Second),
			ModTime:   created,
			Size:      size,
		},
		Polls: len(polls),
		Votes: len(votes),
	}

	if m.uploader != nil {
		if err := m.uploader.Upload(ctx, res.Name, path); err != nil {
			log.Warn("Backup mirror upload failed", "file", res.Name, "err", err)
		}
	}
	if _, err := m.Rotate(); err != nil {
		log.Warn("Backup rotation failed", "dir", m.dir, "err", err)
	}
	return res, nil
}

// nextPath returns a file name for t that does not exist yet. Backups from
// the same second get a suffix one above the highest already present, so a
// newer backup never takes a name that sorts before an older one.
func (m *Manager) nextPath(t time.Time) (string, error) {
	stamp := t.Format(nameLayout)
	files, err := m.scan()
	if err != nil {
		return "", err
	}
	n := 0
	for _, f := range files {
		if s, seq, ok := splitName(f.Name); ok && s == stamp && seq >= n {
			n = seq + 1
		}
	}
	for ; ; n++ {
		name := filePrefix + stamp + fileSuffix
		if n > 0 {
			name = fmt.Sprintf("%s%s_%d%s", filePrefix, stamp, n, fileSuffix)
		}
		path := filepath.Join(m.dir, name)
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
}

// splitName returns the timestamp and collision suffix of a backup name.
func splitName(name string) (stamp string, seq int, ok bool) {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if len(stem) < len(nameLayout) {
		return "", 0, false
	}
	stamp, rest := stem[:len(nameLayout)], stem[len(nameLayout):]
	if rest == "" {
		return stamp, 0, true
	}
	if !strings.HasPrefix(rest, "_") {
		return "", 0, false
	}
	seq, err := strconv.Atoi(rest[1:])
	if err != nil || seq < 0 {
		return "", 0, false
	}
	return stamp, seq, true
}

// older orders backups by modification time, then by the time and suffix
// in their names.
func older(a, b File) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.Before(b.ModTime)
	}
	as, aseq, aok := splitName(a.Name)
	bs, bseq, bok := splitName(b.Name)
	if aok && bok {
		if as != bs {
			return as < bs
		}
		return aseq < bseq
	}
	return a.Name < b.Name
}

// Rotate deletes the oldest backups beyond the retention count and returns
// the removed paths.
func (m *Manager) Rotate() ([]string, error) {
	files, err := m.scan()
	if err != nil {
		return nil, err
	}
	if len(files) <= m.keep {
		return nil, nil
	}
	sort.SliceStable(files, func(i, j int) bool { return older(files[i], files[j]) })

	var removed []string
	var errs []error
	for _, f := range files[:len(files)-m.keep] {
		if err := os.Remove(f.Path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", f.Name, err))
			continue
		}
		log.Info("Removed old backup", "file", f.Name)
		removed = append(removed, f.Path)
	}
	metrics.RecordPruned(len(removed))
	return removed, errors.Join(errs...)
}

// List returns the backup files newest first. A missing directory yields an
// empty list.
func (m *Manager) List() ([]File, error) {
	files, err := m.scan()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool { return older(files[j], files[i]) })
	return files, nil
}

func (m *Manager) scan() ([]File, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}
	var files []File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !IsBackupName(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:      name,
			Path:      filepath.Join(m.dir, name),
			CreatedAt: ParseCreated(name),
			ModTime:   info.ModTime(),
			Size:      info.Size(),
		})
	}
	return files, nil
}

// IsBackupName reports whether name follows the backup naming scheme.
func IsBackupName(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

// ParseCreated extracts the creation time encoded in a backup file name.
func ParseCreated(name string) time.Time {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if len(stem) < len(nameLayout) {
		return time.Time{}
	}
	t, err := time.ParseInLocation(nameLayout, stem[:len(nameLayout)], time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
