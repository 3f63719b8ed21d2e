// Package logging sets up the slog default logger of the CLI host.
package logging

import (
	"cmp"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/docker/mdstream/pkg/paths"
)

// DefaultFileName is the debug log written under the data directory.
const DefaultFileName = "mdstream.debug.log"

// Setup returns the logger used by the CLI. Without debug every record is
// discarded. With debug, records go to a rotating file at path (default
// <data dir>/mdstream.debug.log), or to fallback when the file cannot be
// opened. The returned closer is nil unless a file was opened.
func Setup(debug bool, path string, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	if !debug {
		return slog.New(slog.DiscardHandler), nil, nil
	}

	path = cmp.Or(strings.TrimSpace(path), filepath.Join(paths.GetDataDir(), DefaultFileName))
	file, err := NewRotatingFile(path)
	if err != nil {
		logger := slog.New(slog.NewTextHandler(fallback, &slog.HandlerOptions{Level: slog.LevelDebug}))
		return logger, nil, err
	}
	return slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})), file, nil
}
