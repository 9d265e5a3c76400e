package builtin

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/modserve/internal/errors"
	"github.com/conneroisu/modserve/internal/moduleurl"
	"github.com/conneroisu/modserve/internal/types"
)

// EsbuildPlugin reads script modules from disk and compiles TypeScript and
// JSX to plain ES modules.
type EsbuildPlugin struct{}

func NewEsbuildPlugin() *EsbuildPlugin { return &EsbuildPlugin{} }

func (p *EsbuildPlugin) Name() string { return "modserve:esbuild" }

func (p *EsbuildPlugin) Load(ctx context.Context, id string) (*types.LoadResult, error) {
	if !moduleurl.IsJSRequest(id) || moduleurl.IsInternalRequest(id) {
		return nil, nil
	}
	code, err := os.ReadFile(moduleurl.CleanURL(id))
	if err != nil {
		// Not on disk: let the request fall through.
		return nil, nil
	}
	return &types.LoadResult{Code: string(code)}, nil
}

func (p *EsbuildPlugin) Transform(ctx context.Context, code, id string) (*types.TransformResult, error) {
	if !moduleurl.IsJSRequest(id) || moduleurl.IsInternalRequest(id) {
		return nil, nil
	}

	result := api.Transform(code, api.TransformOptions{
		Loader:     loaderFor(id),
		Format:     api.FormatESModule,
		Target:     api.ESNext,
		Sourcemap:  api.SourceMapExternal,
		Sourcefile: moduleurl.CleanURL(id),
	})
	if len(result.Errors) > 0 {
		return nil, errors.NewTransformError(id, formatMessages(result.Errors))
	}

	return &types.TransformResult{
		Code: string(result.Code),
		Map:  string(result.Map),
	}, nil
}

func loaderFor(id string) api.Loader {
	switch strings.ToLower(path.Ext(moduleurl.CleanURL(id))) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
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
