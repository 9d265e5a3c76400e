// Package cmd provides the modserve command-line interface.
//
// Configuration is read, highest priority first, from command-line flags,
// MODSERVE_* environment variables (MODSERVE_SERVER_PORT and so on), the file
// named by --config or MODSERVE_CONFIG_FILE, and .modserve.yml in the
// current directory.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/modserve/internal/config"
	"github.com/conneroisu/modserve/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "modserve",
	Short: "A no-bundle ES module development server",
	Long: `modserve serves a source tree to the browser as native ES modules,
transforming each file on request, and pushes hot module updates to open
pages when files change.

Quick Start:
  modserve serve                  Start the dev server in the current directory
  modserve serve --root ./web     Serve another directory
  modserve optimize               Pre-bundle dependencies only
  modserve config show            Print the effective configuration`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .modserve.yml, can also use MODSERVE_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	if err := bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	}); err != nil {
		panic(err)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("MODSERVE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".modserve")
	}

	viper.SetEnvPrefix("MODSERVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the effective configuration and a logger built from it.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}
