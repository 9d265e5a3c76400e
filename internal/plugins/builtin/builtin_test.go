package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/modserve/internal/config"
	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/resolver"
	"github.com/conneroisu/modserve/internal/testutils"
)

func TestDefaultsOrder(t *testing.T) {
	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)

	names := make([]string, 0)
	for _, p := range Defaults(cfg) {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{
		"modserve:client-inject",
		"modserve:asset",
		"modserve:resolve",
		"modserve:esbuild",
		"modserve:css",
		"modserve:import-analysis",
	}, names)
}

func TestClientInjectPlugin(t *testing.T) {
	ctx := context.Background()
	p := NewClientInjectPlugin(24678, true)

	resolved, err := p.ResolveID(ctx, moduleurl.ClientPublicPath, "")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, moduleurl.ClientPublicPath, resolved.ID)

	resolved, err = p.ResolveID(ctx, "/src/main.js", "")
	require.NoError(t, err)
	assert.Nil(t, resolved)

	loaded, err := p.Load(ctx, moduleurl.ClientPublicPath)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Contains(t, loaded.Code, "24678")
	assert.Contains(t, loaded.Code, "export function createHotContext")

	loaded, err = p.Load(ctx, "/other")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestClientInjectTransformIndexHTML(t *testing.T) {
	ctx := context.Background()
	script := `<script type="module" src="/@modserve/client"></script>`

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain head",
			input:    "<!doctype html><html><head><title>x</title></head><body></body></html>",
			expected: "<!doctype html><html><head>" + script + "<title>x</title></head><body></body></html>",
		},
		{
			name:     "head with attributes",
			input:    `<html><head lang="en"><meta charset="utf-8"></head></html>`,
			expected: `<html><head lang="en">` + script + `<meta charset="utf-8"></head></html>`,
		},
		{
			name:     "head mentioned in comment first",
			input:    "<!-- <head> --><html><HEAD></HEAD></html>",
			expected: "<!-- <head> --><html><HEAD>" + script + "</HEAD></html>",
		},
		{
			name:     "no head",
			input:    "<div>app</div>",
			expected: script + "<div>app</div>",
		},
	}

	p := NewClientInjectPlugin(24678, true)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := p.TransformIndexHTML(ctx, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}

	disabled := NewClientInjectPlugin(24678, false)
	out, err := disabled.TransformIndexHTML(ctx, "<html><head></head></html>")
	require.NoError(t, err)
	assert.Equal(t, "<html><head></head></html>", out)
}

func TestAssetPlugin(t *testing.T) {
	proj := newProject(t, map[string]string{"src/logo.svg": "<svg/>"})
	ctx := context.Background()

	resolved, err := proj.container.ResolveID(ctx, "/src/logo.svg?import", "")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, proj.path("src/logo.svg")+"?import", resolved.ID)

	loaded, err := proj.container.Load(ctx, resolved.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, `export default "/src/logo.svg"`, loaded.Code)
}

func TestResolvePlugin(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{
		"src/util.ts": "export const a = 1",
		"src/util.js": "export const a = 2",
	})
	p := NewResolvePlugin(resolver.New(root, config.DefaultExtensions))
	ctx := context.Background()

	resolved, err := p.ResolveID(ctx, "./util", root+"/src/main.js")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, root+"/src/util.ts", resolved.ID)

	resolved, err = p.ResolveID(ctx, "lodash", root+"/src/main.js")
	require.NoError(t, err)
	assert.Nil(t, resolved)

	resolved, err = p.ResolveID(ctx, "./missing", root+"/src/main.js")
	require.NoError(t, err)
	assert.Nil(t, resolved)

	_, err = p.ResolveID(ctx, "./util", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingImporter)
}

func TestEsbuildPlugin(t *testing.T) {
	ctx := context.Background()
	p := NewEsbuildPlugin()

	t.Run("typescript", func(t *testing.T) {
		result, err := p.Transform(ctx, "const n: number = 1;\nexport default n;\n", "/app/src/a.ts")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.NotContains(t, result.Code, ": number")
		assert.Contains(t, result.Code, "export")
		assert.NotEmpty(t, result.Map)
	})

	t.Run("jsx", func(t *testing.T) {
		result, err := p.Transform(ctx, "export const App = () => <div>hi</div>;", "/app/src/App.jsx")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.NotContains(t, result.Code, "<div>")
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := p.Transform(ctx, "export const = ;", "/app/src/bad.js")
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrTransformFailure)
		assert.Equal(t, 500, errors.HTTPStatus(err))
	})

	t.Run("non script skipped", func(t *testing.T) {
		result, err := p.Transform(ctx, "body{}", "/app/src/a.css")
		require.NoError(t, err)
		assert.Nil(t, result)

		result, err = p.Transform(ctx, "x", moduleurl.ClientPublicPath)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("load missing file", func(t *testing.T) {
		loaded, err := p.Load(ctx, "/definitely/not/here.js")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})
}

func TestCSSPlugin(t *testing.T) {
	proj := newProject(t, map[string]string{"src/style.css": "body {\n  color: red;\n}\n"})
	ctx := context.Background()
	id := proj.path("src/style.css")

	loaded, err := proj.container.Load(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	result, err := proj.container.Transform(ctx, loaded.Code, id)
	require.NoError(t, err)
	assert.Contains(t, result.Code, `from "/@modserve/client"`)
	assert.Contains(t, result.Code, `__modserve__createHotContext("/src/style.css")`)
	assert.Contains(t, result.Code, `const css = "body {\n  color: red;\n}\n";`)
	assert.Contains(t, result.Code, "updateStyle(id, css);")
	assert.Contains(t, result.Code, "import.meta.hot.accept();")
	assert.Contains(t, result.Code, "removeStyle(id)")
}
