// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/modserve/internal/config"
)

// WriteFiles writes files, keyed by slash-separated path relative to root.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// CreateTempProject creates a project directory holding files.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	WriteFiles(t, root, files)
	return root
}

// CreateTestConfig returns a configuration for root with every default
// applied.
func CreateTestConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg, err := config.Default(root)
	require.NoError(t, err)
	return cfg
}

// CreateServerTestConfig is CreateTestConfig with both listeners on
// loopback ephemeral ports and pre-bundling off.
func CreateServerTestConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := CreateTestConfig(t, root)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.HMRPort = 0
	cfg.Deps.Disabled = true
	return cfg
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
