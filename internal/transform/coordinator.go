// Package transform serves module requests: it turns a URL into the
// rewritten, browser-ready code for that module, caching results on the
// module graph.
package transform

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/graph"
	"github.com/conneroisu/modserve/internal/logging"
	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/monitoring"
	"github.com/conneroisu/modserve/internal/types"
)

const tracerName = "github.com/conneroisu/modserve/internal/transform"

// Pipeline is the subset of the plugin container the coordinator drives.
type Pipeline interface {
	ResolveID(ctx context.Context, id, importer string) (*types.ResolvedID, error)
	Load(ctx context.Context, id string) (*types.LoadResult, error)
	Transform(ctx context.Context, code, id string) (*types.TransformResult, error)
}

// Coordinator runs cache check, resolve, load, transform and store for one
// URL at a time. Concurrent requests for the same URL share one run.
type Coordinator struct {
	graph    *graph.ModuleGraph
	pipeline Pipeline
	metrics  *monitoring.Metrics
	logger   logging.Logger
	tracer   trace.Tracer
	group    singleflight.Group
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records request outcomes on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New creates a coordinator over g and pipeline.
func New(g *graph.ModuleGraph, pipeline Pipeline, logger logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		graph:    g,
		pipeline: pipeline,
		logger:   logger.WithComponent("transform"),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize strips the query and hash from url unless it is an `?import`
// request, whose marker selects the asset module.
func Normalize(url string) string {
	if moduleurl.IsImportRequest(url) {
		return url
	}
	return moduleurl.CleanURL(url)
}

// TransformRequest returns the served code for url. A URL that no plugin can
// resolve or load yields an error for which errors.IsNotFound is true.
func (c *Coordinator) TransformRequest(ctx context.Context, url string) (*types.TransformResult, error) {
	url = Normalize(url)
	kind := requestKind(url)

	if node, ok := c.graph.GetModuleByURL(url); ok {
		if cached := node.TransformResult(); cached != nil {
			c.metrics.ObserveTransform(monitoring.ResultHit, kind, 0)
			return cached, nil
		}
	}

	// The shared run is detached from the caller that started it, so a
	// cancelled request only abandons its own wait.
	work := context.WithoutCancel(ctx)
	ch := c.group.DoChan(url, func() (interface{}, error) {
		return c.doTransform(work, url, kind)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug(ctx, "transform shared with concurrent request", "url", url)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.TransformResult), nil
	}
}

func (c *Coordinator) doTransform(ctx context.Context, url, kind string) (*types.TransformResult, error) {
	ctx, span := c.tracer.Start(ctx, "transform.request", trace.WithAttributes(
		attribute.String("modserve.url", url),
		attribute.String("modserve.kind", kind),
	))
	defer span.End()

	start := time.Now()
	result, err := c.run(ctx, url)
	switch {
	case err == nil:
		c.metrics.ObserveTransform(monitoring.ResultMiss, kind, time.Since(start))
	case errors.IsNotFound(err):
		c.metrics.ObserveTransform(monitoring.ResultNotFound, kind, 0)
		span.SetAttributes(attribute.Bool("modserve.not_found", true))
	default:
		c.metrics.ObserveTransform(monitoring.ResultError, kind, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (c *Coordinator) run(ctx context.Context, url string) (*types.TransformResult, error) {
	rev := c.graph.RevisionOf(url)
	if node, ok := c.graph.GetModuleByURL(url); ok {
		if cached := node.TransformResult(); cached != nil {
			return cached, nil
		}
	}

	resolved, err := c.pipeline.ResolveID(ctx, url, "")
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, errors.NewUnresolvedImportError(url, "")
	}
	id := resolved.ID

	loaded, err := c.pipeline.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return nil, errors.NewLoadError(id, nil)
	}

	node, err := c.graph.EnsureEntryFromURL(ctx, url)
	if err != nil {
		return nil, err
	}

	result, err := c.pipeline.Transform(ctx, loaded.Code, id)
	if err != nil {
		return nil, err
	}
	switch {
	case result == nil:
		result = &types.TransformResult{Code: loaded.Code, Map: loaded.Map}
	case result.Map == "":
		result = &types.TransformResult{Code: result.Code, Map: loaded.Map}
	}

	if !c.graph.StoreTransformResult(node, result, rev) {
		c.metrics.StaleDiscard()
		c.logger.Debug(ctx, "module invalidated during transform, result not cached",
			"url", url, "id", id)
	}
	return result, nil
}

func requestKind(url string) string {
	switch {
	case moduleurl.IsImportRequest(url):
		return "asset"
	case moduleurl.IsCSSRequest(url):
		return "css"
	default:
		return "js"
	}
}
