package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"

	"github.com/conneroisu/modserve/internal/moduleurl"
)

// ScanEntries returns the absolute script entry points named by the
// configured entries. HTML entries contribute their module scripts; any
// other entry is used as is. Missing entries are skipped.
func (o *Optimizer) ScanEntries(ctx context.Context) ([]string, error) {
	var entries []string
	for _, entry := range o.config.Deps.Entries {
		abs := filepath.Join(o.config.Root, filepath.FromSlash(entry))
		if !strings.EqualFold(filepath.Ext(abs), ".html") {
			if _, err := os.Stat(abs); err == nil {
				entries = append(entries, abs)
			}
			continue
		}

		content, err := os.ReadFile(abs)
		if os.IsNotExist(err) {
			o.logger.Debug(ctx, "entry not found", "entry", entry)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading entry %s: %w", entry, err)
		}

		for _, src := range moduleScripts(content) {
			src = moduleurl.CleanURL(src)
			var script string
			if strings.HasPrefix(src, "/") {
				script = filepath.Join(o.config.Root, filepath.FromSlash(src))
			} else {
				script = filepath.Join(filepath.Dir(abs), filepath.FromSlash(src))
			}
			if _, err := os.Stat(script); err != nil {
				o.logger.Warn(ctx, err, "module script not found", "entry", entry, "src", src)
				continue
			}
			entries = append(entries, script)
		}
	}
	return entries, nil
}

// moduleScripts returns the src of every <script type="module" src=...>.
func moduleScripts(content []byte) []string {
	var srcs []string
	z := html.NewTokenizer(bytes.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return srcs
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" || !hasAttr {
				continue
			}
			var isModule bool
			var src string
			for {
				key, val, more := z.TagAttr()
				switch string(key) {
				case "type":
					isModule = string(val) == "module"
				case "src":
					src = string(val)
				}
				if !more {
					break
				}
			}
			if isModule && src != "" && !moduleurl.IsInternalRequest(src) && !strings.Contains(src, "://") {
				srcs = append(srcs, src)
			}
		}
	}
}

// bareImportPattern matches package specifiers such as "react" or
// "@scope/pkg/sub".
const bareImportPattern = `^[\w@][^:]`

// ScanDeps walks the import graph of entries with esbuild and returns the
// sorted, distinct bare specifiers it meets. Asset imports are not followed.
func (o *Optimizer) ScanDeps(ctx context.Context, entries []string) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	collector := &depCollector{deps: make(map[string]struct{})}
	result := api.Build(api.BuildOptions{
		EntryPoints:   entries,
		AbsWorkingDir: o.config.Root,
		Bundle:        true,
		Write:         false,
		Outdir:        o.config.PreBundlePath(),
		Format:        api.FormatESModule,
		LogLevel:      api.LogLevelSilent,
		Plugins:       []api.Plugin{o.scanPlugin(collector)},
	})
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("scanning dependencies: %w", formatMessages(result.Errors))
	}
	return collector.sorted(), nil
}

type depCollector struct {
	mu   sync.Mutex
	deps map[string]struct{}
}

func (c *depCollector) add(dep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[dep] = struct{}{}
}

func (c *depCollector) sorted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.deps))
	for dep := range c.deps {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

func (o *Optimizer) scanPlugin(collector *depCollector) api.Plugin {
	root := o.config.Root
	assetFilter := assetPattern(o.config.Resolve.AssetExtensions)

	return api.Plugin{
		Name: "modserve:scan-deps",
		Setup: func(build api.PluginBuild) {
			if assetFilter != "" {
				build.OnResolve(api.OnResolveOptions{Filter: assetFilter},
					func(args api.OnResolveArgs) (api.OnResolveResult, error) {
						return api.OnResolveResult{Path: args.Path, External: true}, nil
					})
			}

			build.OnResolve(api.OnResolveOptions{Filter: `\.css$`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})

			// Root-absolute imports are URLs served from the project root.
			build.OnResolve(api.OnResolveOptions{Filter: `^/`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if args.Kind == api.ResolveEntryPoint {
						return api.OnResolveResult{Path: args.Path}, nil
					}
					if _, err := os.Stat(args.Path); err == nil && strings.HasPrefix(args.Path, root) {
						return api.OnResolveResult{Path: args.Path}, nil
					}
					rerooted := filepath.Join(root, filepath.FromSlash(moduleurl.CleanURL(args.Path)))
					if _, err := os.Stat(rerooted); err == nil {
						return api.OnResolveResult{Path: rerooted}, nil
					}
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})

			build.OnResolve(api.OnResolveOptions{Filter: bareImportPattern},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if args.Kind == api.ResolveEntryPoint {
						return api.OnResolveResult{}, nil
					}
					collector.add(args.Path)
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})
		},
	}
}

func assetPattern(exts []string) string {
	if len(exts) == 0 {
		return ""
	}
	quoted := make([]string, len(exts))
	for i, ext := range exts {
		quoted[i] = regexp.QuoteMeta(strings.TrimPrefix(ext, "."))
	}
	return `\.(` + strings.Join(quoted, "|") + `)$`
}

func formatMessages(msgs []api.Message) error {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
