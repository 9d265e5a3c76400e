package plugins

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/logging"
	"github.com/conneroisu/modserve/internal/types"
)

// MockPlugin implements every hook with optional canned behaviour.
type MockPlugin struct {
	name string

	resolveTo string
	resolveFn func(id, importer string) (*types.ResolvedID, error)
	loadCode  string
	suffix    string
	mapOut    string
	htmlTag   string
	panicIn   string
	calls     []string
	configErr error
}

func (m *MockPlugin) Name() string { return m.name }

func (m *MockPlugin) ResolveID(ctx context.Context, id, importer string) (*types.ResolvedID, error) {
	m.calls = append(m.calls, "resolveId")
	if m.panicIn == "resolveId" {
		panic("resolver exploded")
	}
	if m.resolveFn != nil {
		return m.resolveFn(id, importer)
	}
	if m.resolveTo == "" {
		return nil, nil
	}
	return &types.ResolvedID{ID: m.resolveTo}, nil
}

func (m *MockPlugin) Load(ctx context.Context, id string) (*types.LoadResult, error) {
	m.calls = append(m.calls, "load")
	if m.loadCode == "" {
		return nil, nil
	}
	return &types.LoadResult{Code: m.loadCode, Map: "load-map"}, nil
}

func (m *MockPlugin) Transform(ctx context.Context, code, id string) (*types.TransformResult, error) {
	m.calls = append(m.calls, "transform")
	if m.panicIn == "transform" {
		panic("transform exploded")
	}
	if m.suffix == "" {
		return nil, nil
	}
	return &types.TransformResult{Code: code + m.suffix, Map: m.mapOut}, nil
}

func (m *MockPlugin) TransformIndexHTML(ctx context.Context, html string) (string, error) {
	if m.htmlTag == "" {
		return html, nil
	}
	return strings.Replace(html, "</head>", m.htmlTag+"</head>", 1), nil
}

func (m *MockPlugin) ConfigureServer(ctx context.Context, server *ServerContext) error {
	m.calls = append(m.calls, "configureServer")
	return m.configErr
}

// resolveOnly implements just the resolve capability.
type resolveOnly struct{ id string }

func (r resolveOnly) Name() string { return "resolve-only" }
func (r resolveOnly) ResolveID(ctx context.Context, id, importer string) (*types.ResolvedID, error) {
	return &types.ResolvedID{ID: r.id}, nil
}

func TestNewContainerCategorises(t *testing.T) {
	c := NewContainer(logging.NewNopLogger(), &MockPlugin{name: "all"}, resolveOnly{id: "/x"})
	assert.Equal(t, []string{"all", "resolve-only"}, c.Plugins())
	assert.Len(t, c.resolvers, 2)
	assert.Len(t, c.loaders, 1)
	assert.Len(t, c.transformers, 1)
	assert.Len(t, c.configurers, 1)
	assert.Len(t, c.indexHTMLTransformer, 1)
}

func TestResolveIDFirstWins(t *testing.T) {
	ctx := context.Background()
	first := &MockPlugin{name: "first"}
	second := &MockPlugin{name: "second", resolveTo: "/root/a.js"}
	third := &MockPlugin{name: "third", resolveTo: "/root/b.js"}
	c := NewContainer(logging.NewNopLogger(), first, second, third)

	resolved, err := c.ResolveID(ctx, "./a", "/root/main.js")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "/root/a.js", resolved.ID)
	assert.Equal(t, []string{"resolveId"}, first.calls)
	assert.Empty(t, third.calls)
}

func TestResolveURL(t *testing.T) {
	ctx := context.Background()

	c := NewContainer(logging.NewNopLogger(), &MockPlugin{name: "none"})
	_, err := c.ResolveURL(ctx, "/missing.js")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	c = NewContainer(logging.NewNopLogger(), resolveOnly{id: "/root/x.js"})
	id, err := c.ResolveURL(ctx, "/x.js")
	require.NoError(t, err)
	assert.Equal(t, "/root/x.js", id)
}

func TestLoadFirstWins(t *testing.T) {
	ctx := context.Background()
	c := NewContainer(logging.NewNopLogger(),
		&MockPlugin{name: "skip"},
		&MockPlugin{name: "hit", loadCode: "export default 1"},
		&MockPlugin{name: "later", loadCode: "never"},
	)

	result, err := c.Load(ctx, "/root/a.js")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "export default 1", result.Code)

	empty := NewContainer(logging.NewNopLogger(), &MockPlugin{name: "skip"})
	result, err = empty.Load(ctx, "/root/a.js")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestTransformPipes(t *testing.T) {
	ctx := context.Background()
	c := NewContainer(logging.NewNopLogger(),
		&MockPlugin{name: "a", suffix: "+a", mapOut: "map-a"},
		&MockPlugin{name: "pass"},
		&MockPlugin{name: "b", suffix: "+b"},
	)

	result, err := c.Transform(ctx, "code", "/root/x.js")
	require.NoError(t, err)
	assert.Equal(t, "code+a+b", result.Code)
	// b returned no map, so a's map is kept.
	assert.Equal(t, "map-a", result.Map)
}

func TestTransformNoTransformers(t *testing.T) {
	c := NewContainer(logging.NewNopLogger(), resolveOnly{id: "/x"})
	result, err := c.Transform(context.Background(), "untouched", "/x")
	require.NoError(t, err)
	assert.Equal(t, "untouched", result.Code)
}

func TestHookErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("typed error tagged with plugin", func(t *testing.T) {
		failing := &MockPlugin{name: "esbuild", resolveFn: func(id, importer string) (*types.ResolvedID, error) {
			return nil, errors.NewMissingImporterError(id)
		}}
		c := NewContainer(logging.NewNopLogger(), failing)
		_, err := c.ResolveID(ctx, "./a", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrMissingImporter)
		se, ok := errors.AsServeError(err)
		require.True(t, ok)
		assert.Equal(t, "esbuild", se.Plugin)
	})

	t.Run("plain error wrapped", func(t *testing.T) {
		failing := &MockPlugin{name: "broken", resolveFn: func(id, importer string) (*types.ResolvedID, error) {
			return nil, fmt.Errorf("disk on fire")
		}}
		c := NewContainer(logging.NewNopLogger(), failing)
		_, err := c.ResolveID(ctx, "./a", "/root/main.js")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
		assert.Contains(t, err.Error(), "disk on fire")
	})

	t.Run("panic isolated to the call", func(t *testing.T) {
		p := &MockPlugin{name: "flaky", panicIn: "transform", suffix: "+x"}
		c := NewContainer(logging.NewNopLogger(), p)

		_, err := c.Transform(ctx, "code", "/root/a.js")
		require.Error(t, err)
		se, ok := errors.AsServeError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeHookPanic, se.Code)
		assert.Equal(t, "flaky", se.Plugin)
		assert.Equal(t, "/root/a.js", se.FilePath)

		// The container keeps working for other calls.
		p.panicIn = ""
		result, err := c.Transform(ctx, "code", "/root/a.js")
		require.NoError(t, err)
		assert.Equal(t, "code+x", result.Code)
	})
}

func TestTransformIndexHTML(t *testing.T) {
	c := NewContainer(logging.NewNopLogger(),
		&MockPlugin{name: "one", htmlTag: "<meta name=one>"},
		&MockPlugin{name: "two", htmlTag: "<meta name=two>"},
	)
	out, err := c.TransformIndexHTML(context.Background(), "<html><head></head></html>")
	require.NoError(t, err)
	assert.Equal(t, "<html><head><meta name=one><meta name=two></head></html>", out)
}

func TestConfigureServer(t *testing.T) {
	a := &MockPlugin{name: "a"}
	b := &MockPlugin{name: "b", configErr: fmt.Errorf("nope")}
	c := &MockPlugin{name: "c"}
	container := NewContainer(logging.NewNopLogger(), a, b, c)

	err := container.ConfigureServer(context.Background(), &ServerContext{Root: "/root", Pipeline: container})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, []string{"configureServer"}, a.calls)
	assert.Empty(t, c.calls)
}
