package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kitedb/config"
)

type rootOpts struct {
	cfgFile string
	debug   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	root := &cobra.Command{
		Use:   "kitedb",
		Short: "An embedded graph database driven by Gremlin traversals",
		Long: `kitedb runs Gremlin-style traversals (V, E, addV, addE, property,
properties, count, hasLabel) against an embedded badger, bolt or in-memory store.
Without a subcommand it starts the interactive shell.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is "+config.DefaultFile+")")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "turn on debug logging")

	root.AddCommand(newReplCmd(opts), newExecCmd(opts), newDatabasesCmd(opts))
	return root
}

// loadConfig reads the configuration and applies its log level
func loadConfig(opts *rootOpts) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if opts.debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Errorf("kitedb: %v", err)
		os.Exit(1)
	}
}
