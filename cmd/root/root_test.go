package root

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/mdstream/pkg/recovery"
)

func init() {
	color.NoColor = true
}

// run executes the CLI with a fresh home directory.
func run(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return runInHome(t, stdin, args...)
}

func runInHome(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(t.Context(), strings.NewReader(stdin), &stdout, &stderr, args...)
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "mdstream version dev\nCommit: unknown\n", stdout)
}

func TestNoSubcommandShowsHelp(t *testing.T) {
	stdout, _, err := run(t, "")
	require.NoError(t, err)
	assert.Contains(t, stdout, "render")
	assert.Contains(t, stdout, "replay")
}

func TestUnknownCommand(t *testing.T) {
	stdout, stderr, err := run(t, "", "frobnify")
	require.Error(t, err)
	assert.Contains(t, stderr, "unknown command")
	assert.Contains(t, stderr, "Usage:")
	assert.NotContains(t, stdout, "Usage:")
}

func TestInvalidConfigFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "max_width: 5\n")
	_, stderr, err := run(t, "text", "render", "--config", path, "-")

	var ce *recovery.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "max_width", ce.Option)
	assert.Contains(t, stderr, "max_width")
}

func TestWidthFlagIsValidated(t *testing.T) {
	_, _, err := run(t, "text", "render", "--width", "10", "-")

	var ce *recovery.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestDebugLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "debug.log")
	_, _, err := run(t, "", "--debug", "--log-file", logFile, "version")
	require.NoError(t, err)

	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}
