package main

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kitedb/graphdb"
)

func newExecCmd(opts *rootOpts) *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "exec <query>",
		Short: "Run one Gremlin query against a database",
		Example: `kitedb exec --db social "g.addV('person').property('name', 'alice')"
kitedb exec --db social "g.V().hasLabel('person').count().next()"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			backend, path, err := cfg.Resolve(database)
			if err != nil {
				return err
			}
			db, err := graphdb.Open(backend, path)
			if err != nil {
				return errors.Wrapf(err, "failed to open database %s", database)
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					err = multierror.Append(err, closeErr).ErrorOrNil()
				}
			}()

			results, err := db.ExecuteQuery(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderValues(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringVar(&database, "db", "", "registered database to query")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
