// Package plugins defines the plugin capabilities of the module pipeline and
// the Container that dispatches them in order.
package plugins

import (
	"context"

	"github.com/conneroisu/modserve/internal/config"
	"github.com/conneroisu/modserve/internal/graph"
	"github.com/conneroisu/modserve/internal/logging"
	"github.com/conneroisu/modserve/internal/types"
	"github.com/conneroisu/modserve/internal/watcher"
	"github.com/conneroisu/modserve/internal/websocket"
)

// Plugin is a named unit of the pipeline. A plugin takes part in a stage by
// also implementing that stage's hook interface.
type Plugin interface {
	// Name returns the unique name of the plugin
	Name() string
}

// ResolveIDHook maps a specifier to a module identity. A nil result with a
// nil error means "not mine".
type ResolveIDHook interface {
	Plugin
	ResolveID(ctx context.Context, id, importer string) (*types.ResolvedID, error)
}

// LoadHook produces the source of a module. A nil result with a nil error
// means "not mine".
type LoadHook interface {
	Plugin
	Load(ctx context.Context, id string) (*types.LoadResult, error)
}

// TransformHook rewrites module source. A nil result passes code through
// unchanged.
type TransformHook interface {
	Plugin
	Transform(ctx context.Context, code, id string) (*types.TransformResult, error)
}

// ServerConfigurer is called once at startup with the shared server state.
type ServerConfigurer interface {
	Plugin
	ConfigureServer(ctx context.Context, server *ServerContext) error
}

// IndexHTMLTransformer rewrites the HTML entry document.
type IndexHTMLTransformer interface {
	Plugin
	TransformIndexHTML(ctx context.Context, html string) (string, error)
}

// ServerContext is the state shared with plugins at startup. Transport is
// nil when hot reload is disabled.
type ServerContext struct {
	Root      string
	Config    *config.Config
	Graph     *graph.ModuleGraph
	Transport *websocket.Hub
	Watcher   *watcher.FileWatcher
	Pipeline  *Container
	Logger    logging.Logger
}
