package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", t.TempDir(), "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "galaxyd dev\n", out)
}

func TestScanEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0600))

	out, err := execute(t, "scan", dir)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := execute(t, "scan", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCoverWithoutArtwork(t *testing.T) {
	file := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(file, []byte("not audio"), 0600))

	_, err := execute(t, "cover", file, "-o", filepath.Join(t.TempDir(), "cover.png"))
	assert.ErrorContains(t, err, "no cover art")
}

func TestSetupWritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", dir, "--socket", "/tmp/custom.sock", "version"})
	require.NoError(t, cmd.Execute())

	e, err := setup(cmd, &globalFlags{configDir: dir})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
	assert.Equal(t, "/tmp/custom.sock", e.config.Get().Server.SocketPath)
}
