package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/modserve/internal/config"
)

// ServerFlags are the flags shared by commands that start listeners.
type ServerFlags struct {
	Port    int
	Host    string
	HMRPort int
	Root    string
	NoHMR   bool
	Open    bool
}

// serverFlagKeys maps viper keys to the flags that set them.
var serverFlagKeys = map[string]string{
	"server.port":     "port",
	"server.host":     "host",
	"server.hmr_port": "hmr-port",
	"server.no-hmr":   "no-hmr",
	"server.open":     "open",
	"root":            "root",
}

// AddServerFlags registers the server flags on fs.
func AddServerFlags(fs *pflag.FlagSet) *ServerFlags {
	flags := &ServerFlags{}
	fs.IntVarP(&flags.Port, "port", "p", config.DefaultPort, "Port to serve on")
	fs.StringVar(&flags.Host, "host", config.DefaultHost, "Host to bind to")
	fs.IntVar(&flags.HMRPort, "hmr-port", config.DefaultHMRPort, "Port of the HMR websocket")
	fs.StringVarP(&flags.Root, "root", "r", ".", "Project root to serve")
	fs.BoolVar(&flags.NoHMR, "no-hmr", false, "Disable hot module replacement")
	fs.BoolVar(&flags.Open, "open", false, "Open the browser on start")
	return flags
}

// AddRootFlag registers only --root on fs.
func AddRootFlag(fs *pflag.FlagSet) {
	fs.StringP("root", "r", ".", "Project root")
}

// bindFlags binds each viper key to the named flag of fs. Several commands
// define the same flags, so commands bind in PreRunE, when only the running
// command's flags are live.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag %q not defined", name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %q: %w", name, err)
		}
	}
	return nil
}

// bindFlagsPreRun returns a PreRunE that binds keys to the command's flags.
func bindFlagsPreRun(keys map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), keys)
	}
}
