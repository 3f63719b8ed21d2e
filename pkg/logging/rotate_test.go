package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFile_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	rf, err := NewRotatingFile(path, WithMaxSize(100), WithMaxBackups(2))
	require.NoError(t, err)
	defer rf.Close()

	data := []byte("hello world\n")
	n, err := rf.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestRotatingFile_Rotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	rf, err := NewRotatingFile(path, WithMaxSize(50), WithMaxBackups(2))
	require.NoError(t, err)
	defer rf.Close()

	// Write enough data to trigger rotation
	data := make([]byte, 30)
	for i := range data {
		data[i] = 'a'
	}

	_, err = rf.Write(data)
	require.NoError(t, err)

	// This write should trigger rotation
	_, err = rf.Write(data)
	require.NoError(t, err)

	// Check that backup file was created
	_, err = os.Stat(path + ".1")
	require.NoError(t, err, "backup file should exist")

	// Original file should have new content
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	// Backup should have old content
	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, data, backup)
}

func TestRotatingFile_MaxBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	rf, err := NewRotatingFile(path, WithMaxSize(20), WithMaxBackups(2))
	require.NoError(t, err)
	defer rf.Close()

	data := make([]byte, 15)

	// Write 4 times to trigger multiple rotations
	for i := range 4 {
		for j := range data {
			data[j] = byte('a' + i)
		}
		_, err = rf.Write(data)
		require.NoError(t, err)
	}

	// Should have current file + 2 backups (maxBackups=2)
	_, err = os.Stat(path)
	require.NoError(t, err, "current file should exist")

	_, err = os.Stat(path + ".1")
	require.NoError(t, err, "backup .1 should exist")

	_, err = os.Stat(path + ".2")
	require.NoError(t, err, "backup .2 should exist")

	// .3 should NOT exist because maxBackups=2
	_, err = os.Stat(path + ".3")
	require.True(t, os.IsNotExist(err), "backup .3 should not exist")
}

func TestRotatingFile_AppendsToExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	// Create a file with existing content
	err := os.WriteFile(path, []byte("existing\n"), 0o600)
	require.NoError(t, err)

	rf, err := NewRotatingFile(path, WithMaxSize(1000), WithMaxBackups(2))
	require.NoError(t, err)
	defer rf.Close()

	_, err = rf.Write([]byte("new\n"))
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing\nnew\n", string(content))
}

func TestRotatingFile_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "nested", "test.log")

	rf, err := NewRotatingFile(path)
	require.NoError(t, err)
	defer rf.Close()

	_, err = rf.Write([]byte("test"))
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestRotatingFile_WriteAfterClose(t *testing.T) {
	rf, err := NewRotatingFile(filepath.Join(t.TempDir(), "test.log"))
	require.NoError(t, err)
	require.NoError(t, rf.Close())
	require.NoError(t, rf.Close())

	_, err = rf.Write([]byte("late"))
	require.Error(t, err)
}

func TestRotatingFile_OversizedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	rf, err := NewRotatingFile(path, WithMaxSize(4), WithMaxBackups(1))
	require.NoError(t, err)
	defer rf.Close()

	_, err = rf.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = os.Stat(path + ".1")
	require.True(t, os.IsNotExist(err), "an empty file is not rotated")

	_, err = rf.Write([]byte("next"))
	require.NoError(t, err)
	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(backup))
}

func TestSetup(t *testing.T) {
	logger, closer, err := Setup(false, "", nil)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))

	path := filepath.Join(t.TempDir(), "debug.log")
	logger, closer, err = Setup(true, path, nil)
	require.NoError(t, err)
	require.NotNil(t, closer)
	logger.Debug("Rendered", "tokens", 3)
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "msg=Rendered tokens=3")
}

func TestSetupFallsBackToWriter(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	var buf strings.Builder
	logger, closer, err := Setup(true, filepath.Join(blocker, "debug.log"), &buf)
	require.Error(t, err)
	assert.Nil(t, closer)

	logger.Warn("Still logging")
	assert.Contains(t, buf.String(), "Still logging")
}
