// Package builtin holds the plugins every dev server runs, in the order the
// pipeline needs them.
package builtin

import (
	"github.com/conneroisu/modserve/internal/config"
	"github.com/conneroisu/modserve/internal/plugins"
	"github.com/conneroisu/modserve/internal/resolver"
)

// Defaults returns the standard plugin list for cfg. Order matters: the
// client runtime and asset URLs are claimed before file resolution, and
// import analysis runs last so it sees transformed JavaScript.
func Defaults(cfg *config.Config) []plugins.Plugin {
	res := resolver.New(cfg.Root, cfg.Resolve.Extensions)
	return []plugins.Plugin{
		NewClientInjectPlugin(cfg.Server.HMRPort, cfg.Development.HotReload),
		NewAssetPlugin(),
		NewResolvePlugin(res),
		NewEsbuildPlugin(),
		NewCSSPlugin(),
		NewImportAnalysisPlugin(),
	}
}
