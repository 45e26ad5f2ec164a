// Command tradelens serves the trade-intelligence search front-end and
// offers one-shot queries, history migrations and routing inspection from
// the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rhuss/tradelens/pkg/config"
	"github.com/rhuss/tradelens/pkg/debug"
)

// version is set at build time via ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tradelens",
		Short: "Trade intelligence search over exporter, importer and news records",
		Long: `tradelens routes free-text trade questions to the exporters, importers or
global_news partition of a hosted vector index, renders the nearest records and
can summarise them with a language model.

Configuration is read from --config, TRADELENS_CONFIG, ./config.yaml or
/etc/tradelens/config.yaml, then overridden by TRADELENS_* environment
variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(
		newServeCmd(),
		newQueryCmd(),
		newMigrateCmd(),
		newNamespacesCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads configuration from the --config flag and installs the
// process logger from its log section.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	debug.Init(debug.Options{
		Categories: cfg.Log.Debug,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
	})
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
