// Package main is canaryd's CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is stamped at build time via -ldflags; left as a plain default
// for a source checkout.
var version = "dev"

var (
	cfgFile        string
	pluginOverride string
	debugAddr      string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "canaryd",
		Short: "canaryd collects host state and streams it to the ingestion API",
		Long: "canaryd is a host-resident monitoring agent: it periodically runs a set of\n" +
			"pluggable probes, diffs each probe's state against what was last sent, and\n" +
			"streams the diffs to a remote API, receiving back a settings document that\n" +
			"reconfigures the agent on the fly.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "/etc/canaryd.conf", "path to the canaryd.conf INI settings file")
	root.PersistentFlags().StringVar(&pluginOverride, "plugin-settings", "", "optional YAML per-plugin settings override file")
	root.PersistentFlags().StringVar(&debugAddr, "debug-addr", "127.0.0.1:9191", "localhost address for the /healthz and /status debug endpoints")

	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("plugin-settings", root.PersistentFlags().Lookup("plugin-settings"))
	_ = viper.BindPFlag("debug-addr", root.PersistentFlags().Lookup("debug-addr"))
	viper.SetEnvPrefix("canaryd")
	viper.AutomaticEnv()

	root.AddCommand(newRunCmd())
	root.AddCommand(newPingCmd())
	root.AddCommand(newRegisterCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(os.Stdout, version)
			return nil
		},
	}
}
