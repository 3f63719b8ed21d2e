package paths

import (
	"os"
	"path/filepath"
)

// GetConfigDir returns the user's config directory for mdstream.
//
// If the home directory cannot be determined, it falls back to a directory
// under the system temporary directory.
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".mdstream-config"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".config", "mdstream"))
}

// GetDataDir returns the user's data directory for mdstream (logs, replays).
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".mdstream"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".mdstream"))
}
