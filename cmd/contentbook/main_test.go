package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/contentbook/internal/control"
	"github.com/msageha/contentbook/internal/crowdsource"
	"github.com/msageha/contentbook/internal/setup"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(context.Background(), args...)
}

func executeContext(ctx context.Context, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func initDir(t *testing.T) string {
	t.Helper()
	project := t.TempDir()
	_, _, err := execute(t, "init", project)
	require.NoError(t, err)
	return filepath.Join(project, setup.DataDir)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "contentbook "+version+"\n", out)
}

func TestInit_Twice(t *testing.T) {
	project := t.TempDir()
	out, _, err := execute(t, "init", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized")

	_, _, err = execute(t, "init", project)
	require.Error(t, err)
}

func TestScan(t *testing.T) {
	dir := initDir(t)

	out, _, err := execute(t, "scan", "quest", "--dir", dir)
	require.NoError(t, err)

	var got control.ScanResult
	require.NoError(t, yamlv3.Unmarshal([]byte(out), &got))
	names := make([]string, 0, len(got.Activities))
	for _, a := range got.Activities {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"King's Recruit", "Cook Assistant", "Enzan's Brother"}, names)
	assert.Equal(t, []string{"Progress", "Quests: 3/120", "Discoveries: 12/380"}, got.Progress)
}

func TestScan_UnknownType(t *testing.T) {
	dir := initDir(t)

	_, _, err := execute(t, "scan", "spaceship", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown activity type")
}

func TestScan_NoDataDir(t *testing.T) {
	_, _, err := execute(t, "scan", "quest", "--dir", "")
	if err == nil {
		t.Skip("a data directory exists above the working directory")
	}
	assert.Contains(t, err.Error(), setup.DataDir)
}

func TestTrack(t *testing.T) {
	dir := initDir(t)

	out, _, err := execute(t, "track", "quest", "Enzan's Brother", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `Toggled tracking of Quest "Enzan's Brother"`)

	_, stderr, err := execute(t, "track", "dungeon", "Nowhere", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, stderr, "Setting tracking in Content Book failed")
}

func TestScan_ThroughRunningClient(t *testing.T) {
	dir := initDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := executeContext(ctx, "run", "--dir", dir)
		done <- err
	}()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	require.Eventually(t, func() bool {
		_, _, err := execute(t, "status", "--dir", dir)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	out, _, err := execute(t, "scan", "cave", "--dir", dir)
	require.NoError(t, err)
	var got control.ScanResult
	require.NoError(t, yamlv3.Unmarshal([]byte(out), &got))
	require.Len(t, got.Activities, 1)
	assert.Equal(t, "Nivla Woods Cave", got.Activities[0].Name)

	out, _, err = execute(t, "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "on_server: true")
}

func TestStatus_NotRunning(t *testing.T) {
	dir := initDir(t)

	_, _, err := execute(t, "status", "--dir", dir)
	assert.ErrorIs(t, err, control.ErrNotRunning)
}

func TestRun_Replay(t *testing.T) {
	dir := initDir(t)
	replayPath := filepath.Join(t.TempDir(), "replay.yaml")
	require.NoError(t, os.WriteFile(replayPath, []byte(`location: Silent Expanse
task: Spelunk
beacons:
  - color: blue
    position: {x: 10, y: 64, z: -20}
  - color: white
    position: {x: 11, y: 64, z: -20}
  - color: purple
    position: {x: 12, y: 70, z: -25}
`), 0o644))

	out, _, err := execute(t, "run", "--dir", dir, "--replay", replayPath, "--for", "300ms")
	require.NoError(t, err)

	var batches []crowdsource.Batch
	require.NoError(t, yamlv3.Unmarshal([]byte(out), &batches))
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Samples, 2)
	assert.Equal(t, crowdsource.TaskSpelunk, batches[0].Samples[0].TaskType)
	assert.Equal(t, crowdsource.Location("Silent Expanse"), batches[0].Samples[0].Location)
}
