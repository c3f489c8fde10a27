package yaml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestQuarantine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "logging: [\n")

	moved, err := Quarantine(dir, path)
	require.NoError(t, err)

	assert.NoFileExists(t, path)
	assert.FileExists(t, moved)
	assert.Equal(t, filepath.Join(dir, QuarantineDir), filepath.Dir(moved))
	name := filepath.Base(moved)
	assert.True(t, strings.HasPrefix(name, "config.yaml."), name)
	assert.True(t, strings.HasSuffix(name, ".corrupt"), name)
}

func TestRestoreFromBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path+BackupSuffix, "logging:\n  level: warn\n")

	require.NoError(t, RestoreFromBackup(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "logging:\n  level: warn\n", string(content))
}

func TestRestoreFromBackup_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := RestoreFromBackup(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backup")
}

func TestRestoreFromBackup_CorruptBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path+BackupSuffix, "logging: [\n")

	err := RestoreFromBackup(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup is also corrupted")
	assert.NoFileExists(t, path)
}

func TestRecover_FromBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "logging: [\n")
	writeFile(t, path+BackupSuffix, "logging:\n  level: debug\n")

	rec, err := Recover(dir, path, map[string]string{"unused": "skeleton"})
	require.NoError(t, err)

	assert.True(t, rec.FromBackup)
	assert.FileExists(t, rec.QuarantinedTo)
	var got map[string]map[string]string
	readYAML(t, path, &got)
	assert.Equal(t, "debug", got["logging"]["level"])
}

func TestRecover_Skeleton(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.yaml")
	writeFile(t, path, "activities: {\n")

	rec, err := Recover(dir, path, map[string]int{"page_size": 54})
	require.NoError(t, err)

	assert.False(t, rec.FromBackup)
	var got map[string]int
	readYAML(t, path, &got)
	assert.Equal(t, 54, got["page_size"])
}

func TestRecover_MissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Recover(dir, filepath.Join(dir, "absent.yaml"), struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quarantine failed")
}
