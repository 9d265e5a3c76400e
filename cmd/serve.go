package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/modserve/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "dev"},
	Short:   "Start the development server with hot module replacement",
	Long: `Start the development server. Source files are transformed on request,
bare imports are served from the pre-bundle directory and edits are pushed to
open pages over the HMR websocket.

Examples:
  modserve serve                     # Serve the current directory on :3001
  modserve serve --port 8080         # Serve on another port
  modserve serve --root ./web --open # Serve ./web and open a browser
  modserve serve --no-hmr            # Disable hot updates`,
	PreRunE: bindFlagsPreRun(serverFlagKeys),
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	AddServerFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting modserve at http://%s\n", cfg.Addr())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
