package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/modserve/internal/config"
)

func TestCreateTempProject(t *testing.T) {
	root := CreateTempProject(t, map[string]string{
		"index.html":    "<html></html>",
		"src/deep/a.js": "export {}",
		"src/style.css": "",
	})

	for _, rel := range []string{"index.html", "src/deep/a.js", "src/style.css"} {
		assert.FileExists(t, filepath.Join(root, filepath.FromSlash(rel)))
	}
	content, err := os.ReadFile(filepath.Join(root, "src", "deep", "a.js"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(content))
}

func TestCreateServerTestConfig(t *testing.T) {
	root := CreateTempProject(t, nil)
	cfg := CreateServerTestConfig(t, root)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, 0, cfg.Server.HMRPort)
	assert.True(t, cfg.Deps.Disabled)
	assert.Equal(t, config.DefaultExtensions, cfg.Resolve.Extensions)
}

func TestWaitForFileChange(t *testing.T) {
	root := CreateTempProject(t, map[string]string{"a.js": "1"})
	file := filepath.Join(root, "a.js")
	before := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(file, before, before))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(file, []byte("2"), 0o644)
	}()
	WaitForFileChange(t, file, before, 2*time.Second)
}
