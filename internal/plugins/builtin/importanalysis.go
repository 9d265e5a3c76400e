package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/conneroisu/modserve/internal/graph"
	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/plugins"
	"github.com/conneroisu/modserve/internal/scanner"
	"github.com/conneroisu/modserve/internal/types"
)

// ImportAnalysisPlugin rewrites the import specifiers of script modules to
// URLs the browser can fetch, records the module's imports in the graph and
// binds import.meta.hot for application code.
type ImportAnalysisPlugin struct {
	server *plugins.ServerContext
}

func NewImportAnalysisPlugin() *ImportAnalysisPlugin { return &ImportAnalysisPlugin{} }

func (p *ImportAnalysisPlugin) Name() string { return "modserve:import-analysis" }

func (p *ImportAnalysisPlugin) ConfigureServer(ctx context.Context, server *plugins.ServerContext) error {
	if server.Graph == nil || server.Pipeline == nil {
		return fmt.Errorf("import analysis needs a module graph and pipeline")
	}
	p.server = server
	return nil
}

func (p *ImportAnalysisPlugin) Transform(ctx context.Context, code, id string) (*types.TransformResult, error) {
	if !moduleurl.IsJSRequest(id) || moduleurl.IsInternalRequest(id) {
		return nil, nil
	}

	g := p.server.Graph
	root := p.server.Root

	node, ok := g.GetModuleByID(id)
	if !ok {
		var err error
		node, err = g.EnsureEntryFromURL(ctx, moduleurl.ToURL(root, id))
		if err != nil {
			return nil, err
		}
	}

	var out strings.Builder
	out.Grow(len(code) + 256)

	if !isDependency(id) {
		out.WriteString(hotPrologue(moduleurl.CleanURL(node.URL())))
	}

	var imported []string
	last := 0
	for _, imp := range scanner.Scan([]byte(code)) {
		rewritten, record, err := p.rewrite(ctx, g, imp.Specifier, id)
		if err != nil {
			return nil, err
		}
		if record != "" {
			imported = append(imported, record)
		}
		if rewritten == imp.Specifier {
			continue
		}
		out.WriteString(code[last:imp.Start])
		out.WriteString(rewritten)
		last = imp.End
	}
	out.WriteString(code[last:])

	if err := g.UpdateModuleInfo(ctx, node, imported); err != nil {
		return nil, err
	}

	// The prologue has no newline, so lines and the incoming map still line up.
	return &types.TransformResult{Code: out.String()}, nil
}

// rewrite returns the replacement for spec and the URL to record as an
// import edge, if any.
func (p *ImportAnalysisPlugin) rewrite(ctx context.Context, g *graph.ModuleGraph, spec, importer string) (string, string, error) {
	cfg := p.server.Config
	root := p.server.Root
	isPath := strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/")

	switch {
	case isPath && moduleurl.HasAssetExtension(spec, cfg.Resolve.AssetExtensions):
		url := spec
		if strings.HasPrefix(spec, ".") {
			dir := filepath.Dir(moduleurl.CleanURL(importer))
			url = moduleurl.ToURL(root, filepath.Join(dir, filepath.FromSlash(spec)))
		}
		return moduleurl.CleanURL(url) + moduleurl.ImportQuery, "", nil

	case moduleurl.IsBareSpecifier(spec) && moduleurl.HasAssetExtension(spec, cfg.Resolve.AssetExtensions):
		// Package assets are served from the package itself, not pre-bundled.
		return path.Join("/node_modules", moduleurl.CleanURL(spec)) + moduleurl.ImportQuery, "", nil

	case moduleurl.IsBareSpecifier(spec):
		url := moduleurl.PreBundleURL(cfg.Deps.PreBundleDir, spec)
		return url, url, nil

	case isPath:
		resolved, err := p.server.Pipeline.ResolveID(ctx, spec, importer)
		if err != nil {
			return "", "", err
		}
		if resolved == nil {
			p.server.Logger.Warn(ctx, nil, "leaving unresolved import as written",
				"specifier", spec, "importer", importer)
			return spec, "", nil
		}

		depID := moduleurl.CleanURL(resolved.ID)
		url := moduleurl.ToURL(root, depID)
		rewritten := url
		if dep, ok := g.GetModuleByID(depID); ok {
			if ts := dep.LastHMRTimestamp(); ts > 0 {
				rewritten += "?t=" + strconv.FormatInt(ts, 10)
			}
		}
		return rewritten, url, nil
	}

	// URLs such as https: or data: are left alone.
	return spec, "", nil
}

func hotPrologue(url string) string {
	quoted, _ := json.Marshal(url)
	return fmt.Sprintf(`import { createHotContext as __modserve__createHotContext } from %q;import.meta.hot = __modserve__createHotContext(%s);`,
		moduleurl.ClientPublicPath, quoted)
}

func isDependency(id string) bool {
	return strings.Contains(filepath.ToSlash(id), "/node_modules/")
}
