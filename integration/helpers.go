//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"testing"
)

// TempConfigPath returns a path for a throwaway config file
func TempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.toml")
}

// WriteFile writes content to path, failing the test on error
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
