// Package config provides configuration types and defaults for the memory service
package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the default data directory ($BRAIN_DATA_DIR when
// set, otherwise <binary-dir>/data)
func DefaultDataDir() string {
	if d := os.Getenv("BRAIN_DATA_DIR"); d != "" {
		return d
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "data")
}

// DefaultWorkspaceDir returns the workspace directory the memory engine
// stores its database and AGENTS.md files under
func DefaultWorkspaceDir() string {
	if d := os.Getenv("BRAIN_WORKSPACE"); d != "" {
		return d
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "workspace")
}
