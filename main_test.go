package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupCommandWithMemoryStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	err := newApp().Run(context.Background(), []string{
		"dbmanager", "--db-kind", "memory", "--backup-dir", dir, "backup",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^partivotes_backup_\d{8}_\d{6}\.json$`, entries[0].Name())
}

func TestMissingRequiredFlagIsNotFatal(t *testing.T) {
	for _, args := range [][]string{
		{"dbmanager", "--db-kind", "memory", "view"},
		{"dbmanager", "--db-kind", "memory", "restore"},
		{"dbmanager", "--db-kind", "memory", "delete", "--force"},
	} {
		assert.NoError(t, newApp().Run(context.Background(), args), args)
	}
}

func TestUnknownOrMissingCommandPrintsUsage(t *testing.T) {
	assert.NoError(t, newApp().Run(context.Background(), []string{"dbmanager"}))
	assert.NoError(t, newApp().Run(context.Background(), []string{"dbmanager", "frobnicate"}))
}

func TestFailedOperationsExitCleanly(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	assert.NoError(t, newApp().Run(context.Background(), []string{
		"dbmanager", "--db-kind", "memory", "restore", "--backup-file", missing, "--force",
	}))
	assert.NoError(t, newApp().Run(context.Background(), []string{
		"dbmanager", "--db-kind", "memory", "--export-dir", t.TempDir(), "export",
	}))
}
