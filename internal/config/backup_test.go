package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectConfigName)

	t.Run("missing file is not an error", func(t *testing.T) {
		backup, err := BackupFile(path)
		require.NoError(t, err)
		assert.Empty(t, backup)
	})

	t.Run("copies content", func(t *testing.T) {
		// Given
		content := "version: 1\nsearch:\n  top_k: 7\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		// When
		backup, err := BackupFile(path)

		// Then
		require.NoError(t, err)
		data, err := os.ReadFile(backup)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
		assert.Contains(t, filepath.Base(backup), ProjectConfigName+BackupSuffix+".")
	})

	t.Run("keeps the newest MaxBackups", func(t *testing.T) {
		var made []string
		for range MaxBackups + 2 {
			b, err := BackupFile(path)
			require.NoError(t, err)
			made = append(made, b)
		}

		backups, err := ListBackups(path)
		require.NoError(t, err)
		require.Len(t, backups, MaxBackups)
		assert.Equal(t, made[len(made)-1], backups[0])
	})
}

func TestListBackups_MissingDir(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Empty(t, backups)
}
