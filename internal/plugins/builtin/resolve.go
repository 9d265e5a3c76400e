package builtin

import (
	"context"
	"strings"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/resolver"
	"github.com/conneroisu/modserve/internal/types"
)

// ResolvePlugin maps relative and root-absolute specifiers to files.
type ResolvePlugin struct {
	resolver *resolver.Resolver
}

func NewResolvePlugin(r *resolver.Resolver) *ResolvePlugin {
	return &ResolvePlugin{resolver: r}
}

func (p *ResolvePlugin) Name() string { return "modserve:resolve" }

// ResolveID leaves bare specifiers and unresolvable paths to later plugins.
// A relative specifier without an importer is an error.
func (p *ResolvePlugin) ResolveID(ctx context.Context, id, importer string) (*types.ResolvedID, error) {
	if !strings.HasPrefix(id, "/") && !strings.HasPrefix(id, ".") {
		return nil, nil
	}

	resolved, err := p.resolver.Resolve(ctx, id, importer)
	switch {
	case err == nil:
		return &types.ResolvedID{ID: resolved}, nil
	case errors.IsNotFound(err):
		return nil, nil
	default:
		return nil, err
	}
}
