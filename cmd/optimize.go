package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/conneroisu/modserve/internal/optimizer"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Pre-bundle bare dependencies without starting the server",
	Long: `Scan the HTML entries for module scripts, collect every bare import they
reach and bundle each package into the pre-bundle directory.

Examples:
  modserve optimize                # Pre-bundle for the current directory
  modserve optimize --root ./web   # Pre-bundle for ./web`,
	PreRunE: bindFlagsPreRun(map[string]string{"root": "root"}),
	RunE:    runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	AddRootFlag(optimizeCmd.Flags())
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	// An explicit optimize run ignores deps.disabled.
	cfg.Deps.Disabled = false

	manifest, err := optimizer.New(cfg, nil, logger).Run(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(manifest.Deps) == 0 {
		fmt.Fprintln(out, "No dependencies to pre-bundle")
		return nil
	}

	deps := make([]string, 0, len(manifest.Deps))
	for dep := range manifest.Deps {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	fmt.Fprintf(out, "Pre-bundled %d dependencies in %s:\n", len(deps), manifest.Duration.Round(1e6))
	for _, dep := range deps {
		fmt.Fprintf(out, "  %s -> %s\n", dep, manifest.Deps[dep])
	}
	return nil
}
