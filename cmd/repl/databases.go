package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDatabasesCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "databases",
		Aliases: []string{"dbs"},
		Short:   "List registered databases",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"name", "backend", "path"})
			for _, name := range cfg.Names() {
				db := cfg.Databases[name]
				table.Append([]string{name, db.Backend, db.Path})
			}
			table.Render()
			return nil
		},
	}
	cmd.AddCommand(newCreateDatabaseCmd(opts), newDropDatabaseCmd(opts))
	return cmd
}

func newCreateDatabaseCmd(opts *rootOpts) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a new database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			db, err := cfg.Register(args[0], backend)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created database %s (%s)\n", args[0], db.Backend)
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "storage backend: badger, bolt or memory (default from config)")
	return cmd
}

func newDropDatabaseCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Unregister a database and delete its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			db, err := cfg.Unregister(args[0])
			if err != nil {
				return err
			}
			if db.Path != "" {
				if err := os.RemoveAll(db.Path); err != nil {
					return errors.Wrapf(err, "failed to remove %s", db.Path)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped database %s\n", args[0])
			return nil
		},
	}
}
