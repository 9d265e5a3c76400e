// Package optimizer pre-bundles bare dependencies so the browser can load
// each package as a single ES module from the pre-bundle directory.
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/modserve/internal/config"
	"github.com/conneroisu/modserve/internal/logging"
	"github.com/conneroisu/modserve/internal/monitoring"
)

// ManifestFile is written to the pre-bundle directory after each run.
const ManifestFile = "_metadata.json"

// Optimizer discovers and pre-bundles the project's bare dependencies.
type Optimizer struct {
	config  *config.Config
	metrics *monitoring.Metrics
	logger  logging.Logger
}

// Manifest records what one run produced.
type Manifest struct {
	BuildTime time.Time         `json:"build_time"`
	Entries   []string          `json:"entries"`
	Deps      map[string]string `json:"deps"`
	Duration  time.Duration     `json:"duration"`
}

// New creates an optimizer. metrics may be nil.
func New(cfg *config.Config, metrics *monitoring.Metrics, logger logging.Logger) *Optimizer {
	return &Optimizer{
		config:  cfg,
		metrics: metrics,
		logger:  logger.WithComponent("optimizer"),
	}
}

// Run scans the entries, bundles every bare dependency found and writes the
// manifest. It returns a nil manifest when pre-bundling is disabled.
func (o *Optimizer) Run(ctx context.Context) (*Manifest, error) {
	if o.config.Deps.Disabled {
		o.logger.Debug(ctx, "dependency pre-bundling disabled")
		return nil, nil
	}

	perf := logging.StartOperation(o.logger, "prebundle")
	start := time.Now()

	manifest, err := o.run(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	manifest.Duration = time.Since(start)
	o.metrics.ObservePrebundle(manifest.Duration)

	if err := writeJSONFile(filepath.Join(o.config.PreBundlePath(), ManifestFile), manifest); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	perf.End(ctx)
	return manifest, nil
}

func (o *Optimizer) run(ctx context.Context) (*Manifest, error) {
	entries, err := o.ScanEntries(ctx)
	if err != nil {
		return nil, err
	}
	deps, err := o.ScanDeps(ctx, entries)
	if err != nil {
		return nil, err
	}
	o.logger.Info(ctx, "dependencies discovered", "entries", len(entries), "deps", deps)

	outputs, err := o.Bundle(ctx, deps)
	if err != nil {
		return nil, err
	}

	rel := make([]string, len(entries))
	for i, entry := range entries {
		if r, err := filepath.Rel(o.config.Root, entry); err == nil {
			rel[i] = filepath.ToSlash(r)
		} else {
			rel[i] = entry
		}
	}

	return &Manifest{
		BuildTime: time.Now(),
		Entries:   rel,
		Deps:      outputs,
	}, nil
}

// Bundle builds each dependency to <pre-bundle-dir>/<dep>.js and returns
// the output file of each dependency. Code shared between dependencies is
// split into chunks in the same directory.
func (o *Optimizer) Bundle(ctx context.Context, deps []string) (map[string]string, error) {
	outputs := make(map[string]string, len(deps))
	if len(deps) == 0 {
		return outputs, nil
	}

	outdir := o.config.PreBundlePath()
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", outdir, err)
	}

	entryPoints := make([]api.EntryPoint, len(deps))
	for i, dep := range deps {
		entryPoints[i] = api.EntryPoint{InputPath: dep, OutputPath: dep}
		outputs[dep] = filepath.Join(outdir, filepath.FromSlash(dep)+".js")
	}

	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       o.config.Root,
		Outdir:              outdir,
		Bundle:              true,
		Splitting:           true,
		Format:              api.FormatESModule,
		Target:              api.ESNext,
		Write:               true,
		LogLevel:            api.LogLevelSilent,
		Define: map[string]string{
			"process.env.NODE_ENV": `"development"`,
		},
	})
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("pre-bundling dependencies: %w", formatMessages(result.Errors))
	}
	for _, w := range result.Warnings {
		o.logger.Debug(ctx, "pre-bundle warning", "text", w.Text)
	}

	return outputs, nil
}

func writeJSONFile(path string, data interface{}) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
