// Package local writes generated site artifacts to the local filesystem.
package local

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store writes artifacts such as sitemap documents beneath a base directory.
type Store struct {
	baseDir string
}

// New creates a filesystem-backed artifact store rooted at baseDir. The
// directory is created if it does not exist and must be writable.
func New(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &Store{baseDir: baseDir}, nil
}

// Write stores data under the given relative name and returns the full path.
// Names resolving outside the base directory are rejected.
func (s *Store) Write(name string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("artifact name is required")
	}

	fullPath := filepath.Join(s.baseDir, name)

	cleanBase := filepath.Clean(s.baseDir)
	cleanFull := filepath.Clean(fullPath)
	if cleanFull != cleanBase && !strings.HasPrefix(cleanFull, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact name escapes the base directory")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return fullPath, nil
}
