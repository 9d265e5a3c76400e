package plugins

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/logging"
	"github.com/conneroisu/modserve/internal/types"
)

const tracerName = "github.com/conneroisu/modserve/internal/plugins"

// Container runs the hooks of a fixed, ordered plugin list. Plugins are
// categorised by capability once at construction.
type Container struct {
	plugins              []Plugin
	resolvers            []ResolveIDHook
	loaders              []LoadHook
	transformers         []TransformHook
	configurers          []ServerConfigurer
	indexHTMLTransformer []IndexHTMLTransformer

	logger logging.Logger
	tracer trace.Tracer
}

// NewContainer creates a container over plugins in the given order.
func NewContainer(logger logging.Logger, plugins ...Plugin) *Container {
	c := &Container{
		plugins: plugins,
		logger:  logger.WithComponent("pipeline"),
		tracer:  otel.Tracer(tracerName),
	}
	for _, p := range plugins {
		if h, ok := p.(ResolveIDHook); ok {
			c.resolvers = append(c.resolvers, h)
		}
		if h, ok := p.(LoadHook); ok {
			c.loaders = append(c.loaders, h)
		}
		if h, ok := p.(TransformHook); ok {
			c.transformers = append(c.transformers, h)
		}
		if h, ok := p.(ServerConfigurer); ok {
			c.configurers = append(c.configurers, h)
		}
		if h, ok := p.(IndexHTMLTransformer); ok {
			c.indexHTMLTransformer = append(c.indexHTMLTransformer, h)
		}
	}
	return c
}

// Logger returns the pipeline logger.
func (c *Container) Logger() logging.Logger {
	return c.logger
}

// Plugins returns the plugin names in order.
func (c *Container) Plugins() []string {
	names := make([]string, len(c.plugins))
	for i, p := range c.plugins {
		names[i] = p.Name()
	}
	return names
}

// ResolveID asks each resolver in order; the first non-nil result wins.
// A nil result means no plugin resolved id.
func (c *Container) ResolveID(ctx context.Context, id, importer string) (*types.ResolvedID, error) {
	ctx, span := c.tracer.Start(ctx, "pipeline.resolveId", trace.WithAttributes(
		attribute.String("modserve.id", id),
		attribute.String("modserve.importer", importer),
	))
	defer span.End()

	for _, h := range c.resolvers {
		var result *types.ResolvedID
		err := guard(h.Name(), "resolveId", id, func() (err error) {
			result, err = h.ResolveID(ctx, id, importer)
			return err
		})
		if err != nil {
			recordError(span, err)
			return nil, err
		}
		if result != nil {
			span.SetAttributes(attribute.String("modserve.plugin", h.Name()))
			return result, nil
		}
	}
	return nil, nil
}

// ResolveURL resolves a URL with no importer, reporting an UnresolvedImport
// error when no plugin claims it. It has the shape of graph.ResolveFunc.
func (c *Container) ResolveURL(ctx context.Context, url string) (string, error) {
	resolved, err := c.ResolveID(ctx, url, "")
	if err != nil {
		return "", err
	}
	if resolved == nil {
		return "", errors.NewUnresolvedImportError(url, "")
	}
	return resolved.ID, nil
}

// Load asks each loader in order; the first non-nil result wins.
func (c *Container) Load(ctx context.Context, id string) (*types.LoadResult, error) {
	ctx, span := c.tracer.Start(ctx, "pipeline.load", trace.WithAttributes(
		attribute.String("modserve.id", id),
	))
	defer span.End()

	for _, h := range c.loaders {
		var result *types.LoadResult
		err := guard(h.Name(), "load", id, func() (err error) {
			result, err = h.Load(ctx, id)
			return err
		})
		if err != nil {
			recordError(span, err)
			return nil, err
		}
		if result != nil {
			span.SetAttributes(attribute.String("modserve.plugin", h.Name()))
			return result, nil
		}
	}
	return nil, nil
}

// Transform pipes code through every transformer in order. A transformer
// that returns no map keeps the previous one.
func (c *Container) Transform(ctx context.Context, code, id string) (*types.TransformResult, error) {
	ctx, span := c.tracer.Start(ctx, "pipeline.transform", trace.WithAttributes(
		attribute.String("modserve.id", id),
	))
	defer span.End()

	current := &types.TransformResult{Code: code}
	for _, h := range c.transformers {
		var result *types.TransformResult
		err := guard(h.Name(), "transform", id, func() (err error) {
			result, err = h.Transform(ctx, current.Code, id)
			return err
		})
		if err != nil {
			recordError(span, err)
			return nil, err
		}
		if result == nil {
			continue
		}
		next := &types.TransformResult{Code: result.Code, Map: result.Map}
		if next.Map == "" {
			next.Map = current.Map
		}
		current = next
	}
	return current, nil
}

// TransformIndexHTML pipes html through every index HTML transformer.
func (c *Container) TransformIndexHTML(ctx context.Context, html string) (string, error) {
	for _, h := range c.indexHTMLTransformer {
		var out string
		err := guard(h.Name(), "transformIndexHtml", "index.html", func() (err error) {
			out, err = h.TransformIndexHTML(ctx, html)
			return err
		})
		if err != nil {
			return "", err
		}
		html = out
	}
	return html, nil
}

// ConfigureServer calls every configurer once, stopping at the first error.
func (c *Container) ConfigureServer(ctx context.Context, server *ServerContext) error {
	for _, h := range c.configurers {
		err := guard(h.Name(), "configureServer", "", func() error {
			return h.ConfigureServer(ctx, server)
		})
		if err != nil {
			return fmt.Errorf("configure server: %w", err)
		}
		c.logger.Debug(ctx, "plugin configured", "plugin", h.Name())
	}
	return nil
}

// guard runs one hook, turning a panic into an error for this call only.
func guard(plugin, hook, id string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewInternalError(
				errors.ErrCodeHookPanic,
				fmt.Sprintf("%s hook panicked: %v", hook, r),
				nil,
			).WithPlugin(plugin).WithFile(id)
		}
	}()

	if err := fn(); err != nil {
		if se, ok := err.(*errors.ServeError); ok {
			tagged := *se
			if tagged.Plugin == "" {
				tagged.Plugin = plugin
			}
			return &tagged
		}
		return fmt.Errorf("plugin %s %s %s: %w", plugin, hook, id, err)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
