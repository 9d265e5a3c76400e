package builtin

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/modserve/internal/config"
	"github.com/conneroisu/modserve/internal/graph"
	"github.com/conneroisu/modserve/internal/logging"
	"github.com/conneroisu/modserve/internal/plugins"
	"github.com/conneroisu/modserve/internal/testutils"
)

type project struct {
	root      string
	cfg       *config.Config
	container *plugins.Container
	graph     *graph.ModuleGraph
}

func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()
	root := testutils.CreateTempProject(t, files)
	cfg := testutils.CreateTestConfig(t, root)

	logger := logging.NewNopLogger()
	container := plugins.NewContainer(logger, Defaults(cfg)...)
	g := graph.New(container.ResolveURL)

	require.NoError(t, container.ConfigureServer(context.Background(), &plugins.ServerContext{
		Root:     cfg.Root,
		Config:   cfg,
		Graph:    g,
		Pipeline: container,
		Logger:   logger,
	}))

	return &project{root: cfg.Root, cfg: cfg, container: container, graph: g}
}

func (p *project) path(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}
