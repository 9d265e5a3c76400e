package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/modserve/internal/logging"
)

type collector struct {
	mu     sync.Mutex
	events []ChangeEvent
	calls  int
}

func (c *collector) handle(ctx context.Context, events []ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	c.calls++
	return nil
}

func (c *collector) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Path
	}
	return out
}

func newTestWatcher(t *testing.T, root string) (*FileWatcher, *collector) {
	t.Helper()
	fw, err := NewFileWatcher(20*time.Millisecond, []string{"node_modules", ".git"}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })

	c := &collector{}
	fw.AddHandler(c.handle)
	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, fw.Start(ctx))
	return fw, c
}

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestAddRecursiveSkipsIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "components"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "lodash"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))

	fw, err := NewFileWatcher(10*time.Millisecond, []string{"node_modules", ".git"}, logging.NewNopLogger())
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, fw.AddRecursive(root))

	watched := fw.WatchedPaths()
	assert.Contains(t, watched, root)
	assert.Contains(t, watched, filepath.Join(root, "src"))
	assert.Contains(t, watched, filepath.Join(root, "src", "components"))
	for _, p := range watched {
		assert.NotContains(t, p, "node_modules")
		assert.NotContains(t, p, ".git")
	}
}

func TestFileWatcherReportsChanges(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "util.js")
	require.NoError(t, os.WriteFile(file, []byte("export const a = 1"), 0o644))

	_, c := newTestWatcher(t, root)

	require.NoError(t, os.WriteFile(file, []byte("export const a = 2"), 0o644))

	require.Eventually(t, func() bool {
		return len(c.paths()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, c.paths(), file)
}

func TestFileWatcherDebounces(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "main.js")
	require.NoError(t, os.WriteFile(file, []byte("1"), 0o644))

	_, c := newTestWatcher(t, root)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte{byte('0' + i)}, 0o644))
	}

	require.Eventually(t, func() bool {
		return len(c.paths()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Rapid writes to one path collapse into a single event per batch.
	assert.Equal(t, c.calls, len(c.events))
	assert.Less(t, c.calls, 5)
}

func TestFileWatcherWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	_, c := newTestWatcher(t, root)

	dir := filepath.Join(root, "feature")
	require.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(dir, "new.js")
	require.NoError(t, os.WriteFile(file, []byte("export {}"), 0o644))

	require.Eventually(t, func() bool {
		for _, p := range c.paths() {
			if p == file {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFilters(t *testing.T) {
	fw, err := NewFileWatcher(10*time.Millisecond, []string{"node_modules"}, logging.NewNopLogger())
	require.NoError(t, err)
	defer fw.Stop()

	assert.False(t, fw.notIgnored("/app/node_modules/lodash/index.js"))
	assert.True(t, fw.notIgnored("/app/src/index.js"))

	assert.False(t, NoEditorTempFilter("/app/src/main.js~"))
	assert.False(t, NoEditorTempFilter("/app/src/.main.js.swp"))
	assert.False(t, NoEditorTempFilter("/app/src/.#main.js"))
	assert.True(t, NoEditorTempFilter("/app/src/main.js"))
}
