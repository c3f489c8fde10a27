package yaml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv3 "gopkg.in/yaml.v3"
)

func readYAML(t *testing.T, path string, out any) {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yamlv3.Unmarshal(content, out))
}

func TestAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")

	require.NoError(t, AtomicWrite(path, map[string]any{"title": "§f§lContent Book", "page_size": 54}))

	var got map[string]any
	readYAML(t, path, &got)
	assert.Equal(t, "§f§lContent Book", got["title"])
	assert.Equal(t, 54, got["page_size"])
	assert.NoFileExists(t, path+BackupSuffix)
}

func TestAtomicWrite_KeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, AtomicWrite(path, map[string]string{"level": "info"}))
	require.NoError(t, AtomicWrite(path, map[string]string{"level": "debug"}))

	var current, previous map[string]string
	readYAML(t, path, &current)
	readYAML(t, path+BackupSuffix, &previous)
	assert.Equal(t, "debug", current["level"])
	assert.Equal(t, "info", previous["level"])
}

func TestAtomicWriteRaw_RejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := AtomicWriteRaw(path, []byte("filters: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml validation failed")
	assert.NoFileExists(t, path)
}

func TestAtomicWrite_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, AtomicWrite(path, map[string]int{"max_filters": 11}))
	require.Error(t, AtomicWriteRaw(path, []byte("{")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".contentbook-tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestAtomicWrite_Struct(t *testing.T) {
	type bookSettings struct {
		HotbarSlot int    `yaml:"hotbar_slot"`
		Title      string `yaml:"title"`
	}
	path := filepath.Join(t.TempDir(), "settings.yaml")

	require.NoError(t, AtomicWrite(path, &bookSettings{HotbarSlot: 7, Title: "Content Book"}))

	var got bookSettings
	readYAML(t, path, &got)
	assert.Equal(t, bookSettings{HotbarSlot: 7, Title: "Content Book"}, got)
}

func TestAtomicWrite_KeepsFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: info\n"), 0o600))

	require.NoError(t, AtomicWrite(path, map[string]string{"level": "warn"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
