// Package graph tracks the modules the dev server has transformed, the
// import edges between them, their cached transform output and the
// timestamps of their last hot update.
//
// All graph state (both indices, every edge set, cached results and
// timestamps) is guarded by a single RWMutex on ModuleGraph. Nodes hold a
// back pointer to their graph so their accessors take the same lock.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/types"
)

// ResolveFunc maps a URL to the module identity it is served from.
type ResolveFunc func(ctx context.Context, url string) (string, error)

// ModuleNode is one module known to the graph.
type ModuleNode struct {
	url string
	id  string

	importers        map[*ModuleNode]struct{}
	importedModules  map[*ModuleNode]struct{}
	transformResult  *types.TransformResult
	lastHMRTimestamp int64

	graph *ModuleGraph
}

// URL returns the URL the node was first requested by.
func (n *ModuleNode) URL() string { return n.url }

// ID returns the resolved identity of the node.
func (n *ModuleNode) ID() string { return n.id }

// Importers returns the nodes that import n, sorted by URL.
func (n *ModuleNode) Importers() []*ModuleNode {
	n.graph.mu.RLock()
	defer n.graph.mu.RUnlock()
	return sortedNodes(n.importers)
}

// ImportedModules returns the nodes n imports, sorted by URL.
func (n *ModuleNode) ImportedModules() []*ModuleNode {
	n.graph.mu.RLock()
	defer n.graph.mu.RUnlock()
	return sortedNodes(n.importedModules)
}

// TransformResult returns the cached transform output, or nil.
func (n *ModuleNode) TransformResult() *types.TransformResult {
	n.graph.mu.RLock()
	defer n.graph.mu.RUnlock()
	return n.transformResult
}

// LastHMRTimestamp returns the millisecond stamp of the last invalidation
// that touched n, or 0.
func (n *ModuleNode) LastHMRTimestamp() int64 {
	n.graph.mu.RLock()
	defer n.graph.mu.RUnlock()
	return n.lastHMRTimestamp
}

func (n *ModuleNode) String() string {
	return fmt.Sprintf("ModuleNode(%s -> %s)", n.url, n.id)
}

// Option configures a ModuleGraph.
type Option func(*ModuleGraph)

// WithClock replaces the wall clock used for HMR timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *ModuleGraph) {
		g.now = now
	}
}

// ModuleGraph indexes nodes by URL and by identity.
type ModuleGraph struct {
	mu    sync.RWMutex
	byURL map[string]*ModuleNode
	byID  map[string]*ModuleNode

	resolve ResolveFunc
	group   singleflight.Group

	now       func() time.Time
	lastStamp int64
	// epoch counts InvalidateModule calls, including ones for ids the
	// graph does not know yet.
	epoch uint64
}

// Revision is the invalidation state of a URL observed when a transform
// begins. StoreTransformResult compares it against the state at store time.
type Revision struct {
	known bool
	stamp int64
	epoch uint64
}

// New creates an empty graph using resolve for identity lookups.
func New(resolve ResolveFunc, opts ...Option) *ModuleGraph {
	g := &ModuleGraph{
		byURL:   make(map[string]*ModuleNode),
		byID:    make(map[string]*ModuleNode),
		resolve: resolve,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GetModuleByURL looks up a node by the URL it was registered under.
func (g *ModuleGraph) GetModuleByURL(url string) (*ModuleNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byURL[url]
	return n, ok
}

// GetModuleByID looks up a node by its resolved identity.
func (g *ModuleGraph) GetModuleByID(id string) (*ModuleNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byID[id]
	return n, ok
}

// Size returns the number of distinct nodes.
func (g *ModuleGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}

// Modules returns every node sorted by URL.
func (g *ModuleGraph) Modules() []*ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := make(map[*ModuleNode]struct{}, len(g.byID))
	for _, n := range g.byID {
		set[n] = struct{}{}
	}
	return sortedNodes(set)
}

// RevisionOf snapshots the invalidation state of url. For a URL with a node
// the snapshot is the node's timestamp; otherwise it is the graph-wide
// invalidation epoch, since an edit to a module without a node leaves no
// other trace.
func (g *ModuleGraph) RevisionOf(url string) Revision {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rev := Revision{epoch: g.epoch}
	if n, ok := g.byURL[url]; ok {
		rev.known = true
		rev.stamp = n.lastHMRTimestamp
	}
	return rev
}

// EnsureEntryFromURL returns the node for url, creating it if needed.
// Concurrent calls for the same url share one resolution and creation.
// A url the resolve function cannot place on disk is keyed by the url
// itself.
func (g *ModuleGraph) EnsureEntryFromURL(ctx context.Context, url string) (*ModuleNode, error) {
	if n, ok := g.GetModuleByURL(url); ok {
		return n, nil
	}

	// The shared resolution outlives any single caller. A caller whose ctx
	// ends stops waiting without failing the others.
	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(url, func() (interface{}, error) {
		if n, ok := g.GetModuleByURL(url); ok {
			return n, nil
		}

		id, err := g.resolve(detached, url)
		if err != nil {
			if !errors.IsNotFound(err) {
				return nil, err
			}
			id = url
		}
		if id == "" {
			id = url
		}

		g.mu.Lock()
		defer g.mu.Unlock()

		n, ok := g.byID[id]
		if !ok {
			n = &ModuleNode{
				url:             url,
				id:              id,
				importers:       make(map[*ModuleNode]struct{}),
				importedModules: make(map[*ModuleNode]struct{}),
				graph:           g,
			}
			g.byID[id] = n
		}
		g.byURL[url] = n
		return n, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ModuleNode), nil
	}
}

// UpdateModuleInfo replaces the import set of node with the modules named
// by urls. Query strings and hashes are stripped before lookup. Edges are
// kept mutual: every added import gains node as an importer and every
// dropped import loses it.
func (g *ModuleGraph) UpdateModuleInfo(ctx context.Context, node *ModuleNode, urls []string) error {
	next := make(map[*ModuleNode]struct{}, len(urls))
	for _, u := range urls {
		dep, err := g.EnsureEntryFromURL(ctx, moduleurl.CleanURL(u))
		if err != nil {
			return fmt.Errorf("failed to ensure import %s of %s: %w", u, node.url, err)
		}
		next[dep] = struct{}{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for prev := range node.importedModules {
		if _, keep := next[prev]; !keep {
			delete(prev.importers, node)
		}
	}
	for dep := range next {
		dep.importers[node] = struct{}{}
	}
	node.importedModules = next
	return nil
}

// InvalidateModule clears the cached result of the module with identity id
// and of every module that transitively imports it, stamping each with the
// same fresh timestamp. Each node is touched once even when the importer
// chain is cyclic. Unknown ids are a no-op.
func (g *ModuleGraph) InvalidateModule(id string) []*ModuleNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.epoch++
	start, ok := g.byID[id]
	if !ok {
		return nil
	}

	stamp := g.nextStampLocked()
	seen := map[*ModuleNode]struct{}{start: {}}
	stack := []*ModuleNode{start}
	var touched []*ModuleNode

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n.lastHMRTimestamp = stamp
		n.transformResult = nil
		touched = append(touched, n)

		for imp := range n.importers {
			if _, done := seen[imp]; done {
				continue
			}
			seen[imp] = struct{}{}
			stack = append(stack, imp)
		}
	}
	return touched
}

// NextTimestamp issues a fresh HMR timestamp without touching any node.
func (g *ModuleGraph) NextTimestamp() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextStampLocked()
}

// StoreTransformResult caches result on node unless an invalidation
// happened after rev was taken. It reports whether the result was stored.
func (g *ModuleGraph) StoreTransformResult(node *ModuleNode, result *types.TransformResult, rev Revision) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rev.known && node.lastHMRTimestamp != rev.stamp {
		return false
	}
	if !rev.known && g.epoch != rev.epoch {
		return false
	}
	node.transformResult = result
	return true
}

// stamps are milliseconds but strictly increasing, even within one tick.
func (g *ModuleGraph) nextStampLocked() int64 {
	stamp := g.now().UnixMilli()
	if stamp <= g.lastStamp {
		stamp = g.lastStamp + 1
	}
	g.lastStamp = stamp
	return stamp
}

func sortedNodes(set map[*ModuleNode]struct{}) []*ModuleNode {
	out := make([]*ModuleNode, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].url < out[j].url })
	return out
}
