package hmr

import (
	"context"

	"github.com/conneroisu/modserve/internal/graph"
	"github.com/conneroisu/modserve/internal/logging"
	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/monitoring"
	"github.com/conneroisu/modserve/internal/watcher"
)

// Broadcaster delivers a message to every connected browser.
type Broadcaster interface {
	Broadcast(msg interface{})
}

// Bridge invalidates changed modules and announces them to browsers.
type Bridge struct {
	root        string
	graph       *graph.ModuleGraph
	broadcaster Broadcaster
	metrics     *monitoring.Metrics
	logger      logging.Logger
}

// NewBridge creates a bridge for the project at root. metrics may be nil.
func NewBridge(root string, g *graph.ModuleGraph, b Broadcaster, metrics *monitoring.Metrics, logger logging.Logger) *Bridge {
	return &Bridge{
		root:        root,
		graph:       g,
		broadcaster: b,
		metrics:     metrics,
		logger:      logger.WithComponent("hmr"),
	}
}

// HandleEvents is a watcher.ChangeHandler. Created files count as changes
// because editors that save atomically replace the file.
func (b *Bridge) HandleEvents(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		switch event.Type {
		case watcher.EventTypeModified, watcher.EventTypeCreated:
			b.FileChanged(ctx, event.Path)
		}
	}
	return nil
}

// FileChanged invalidates file and everything importing it, then broadcasts
// one js-update for it. Invalidation completes before the broadcast.
func (b *Bridge) FileChanged(ctx context.Context, file string) {
	touched := b.graph.InvalidateModule(file)

	var timestamp int64
	if len(touched) > 0 {
		timestamp = touched[0].LastHMRTimestamp()
	} else {
		timestamp = b.graph.NextTimestamp()
	}

	url := moduleurl.ToURL(b.root, file)
	b.broadcaster.Broadcast(NewJSUpdate(url, timestamp))
	b.metrics.HMRUpdate(len(touched))

	b.logger.Info(ctx, "hmr update", "path", url, "invalidated", len(touched))
}
