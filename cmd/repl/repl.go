package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kitedb/config"
	"kitedb/graphdb"
)

var errNoDatabase = errors.New("no database selected; use 'USE DATABASE <name>'")

func newReplCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, opts)
		},
	}
}

func runREPL(cmd *cobra.Command, opts *rootOpts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	rs := newReplState(cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	return rs.run(cmd.Context())
}

// replState holds the state of the REPL
type replState struct {
	cfg       *config.Config
	db        *graphdb.GraphDB
	dbName    string
	log       *logrus.Entry
	in        io.Reader
	out       io.Writer
	queryNum  int
	isRunning bool
}

// newReplState initializes the REPL state
func newReplState(cfg *config.Config, in io.Reader, out io.Writer) *replState {
	return &replState{
		cfg:       cfg,
		log:       logrus.WithField("component", "REPL"),
		in:        in,
		out:       out,
		isRunning: true,
	}
}

// createDatabase registers a new database; backend may be empty
func (rs *replState) createDatabase(name, backend string) error {
	db, err := rs.cfg.Register(name, backend)
	if err != nil {
		return err
	}
	fmt.Fprintf(rs.out, "Created database %s (%s)\n", name, db.Backend)
	return nil
}

// useDatabase switches to the specified database
func (rs *replState) useDatabase(name string) error {
	backend, path, err := rs.cfg.Resolve(name)
	if err != nil {
		return err
	}
	if err := rs.closeDatabase(); err != nil {
		return err
	}
	db, err := graphdb.Open(backend, path)
	if err != nil {
		return errors.Wrapf(err, "failed to open database %s", name)
	}
	rs.db = db
	rs.dbName = strings.ToLower(name)
	rs.log.WithFields(logrus.Fields{
		"database": rs.dbName,
		"backend":  backend,
	}).Info("Using database")
	fmt.Fprintf(rs.out, "Using database %s\n", rs.dbName)
	return nil
}

// showDatabases lists all registered databases
func (rs *replState) showDatabases() {
	names := rs.cfg.Names()
	if len(names) == 0 {
		fmt.Fprintln(rs.out, "No databases found")
		return
	}
	table := tablewriter.NewWriter(rs.out)
	table.SetHeader([]string{"name", "backend", "path", "in use"})
	for _, name := range names {
		db := rs.cfg.Databases[name]
		inUse := ""
		if name == rs.dbName {
			inUse = "*"
		}
		table.Append([]string{name, db.Backend, db.Path, inUse})
	}
	table.Render()
}

// dropDatabase unregisters the database and deletes its files
func (rs *replState) dropDatabase(name string) error {
	if strings.ToLower(name) == rs.dbName {
		if err := rs.closeDatabase(); err != nil {
			return err
		}
	}
	db, err := rs.cfg.Unregister(name)
	if err != nil {
		return err
	}
	if db.Path != "" {
		if err := os.RemoveAll(db.Path); err != nil {
			return errors.Wrapf(err, "failed to remove %s", db.Path)
		}
	}
	rs.log.WithField("database", name).Info("Dropped database")
	fmt.Fprintf(rs.out, "Dropped database %s\n", name)
	return nil
}

// showVertices lists stored vertices, optionally only one label
func (rs *replState) showVertices(ctx context.Context, labels []string) error {
	if rs.db == nil {
		return errNoDatabase
	}
	vertices, err := rs.db.Vertices(ctx, labels...)
	if err != nil {
		return errors.Wrap(err, "failed to show vertices")
	}
	if len(vertices) == 0 {
		fmt.Fprintln(rs.out, "No vertices found")
		return nil
	}
	renderVertices(rs.out, vertices)
	return nil
}

// describeDatabase shows metadata about the current database
func (rs *replState) describeDatabase(ctx context.Context) error {
	if rs.db == nil {
		return errNoDatabase
	}
	desc, err := rs.db.Describe(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to describe database")
	}
	fmt.Fprintf(rs.out, "Database: %s\n", rs.dbName)
	fmt.Fprintf(rs.out, "  Backend: %s (%s)\n", desc.Backend, desc.Variant)
	if desc.Path != "" {
		fmt.Fprintf(rs.out, "  Path: %s\n", desc.Path)
	}
	fmt.Fprintf(rs.out, "  Vertex Count: %d\n", desc.Vertices)
	renderLabels(rs.out, desc.Labels)
	return nil
}

// executeQuery executes a Gremlin query
func (rs *replState) executeQuery(ctx context.Context, query string) error {
	if rs.db == nil {
		return errNoDatabase
	}
	rs.queryNum++
	log := rs.log.WithFields(logrus.Fields{
		"query":     query,
		"query_num": rs.queryNum,
	})
	log.Debug("Executing query")
	results, err := rs.db.ExecuteQuery(ctx, query)
	if err != nil {
		log.WithError(err).Error("Failed to execute query")
		return errors.Wrap(err, "query execution failed")
	}
	if len(results) == 0 {
		fmt.Fprintln(rs.out, "No results returned")
		return nil
	}
	renderValues(rs.out, results)
	return nil
}

// printHelp displays the help message
func (rs *replState) printHelp() {
	fmt.Fprintln(rs.out, `KiteDB REPL Commands:
  .help                                 Show this help message
  .exit                                 Exit the REPL
  CREATE DATABASE <name> [USING <kind>] Create a database (badger, bolt or memory)
  USE DATABASE <name>                   Switch to the specified database
  SHOW DATABASES                        List all databases
  DROP DATABASE <name>                  Delete the specified database
  DESCRIBE DATABASE                     Show backend and label counts
  SHOW VERTICES [label]                 List stored vertices
Gremlin Queries:
  g.addV('person').property('name', 'alice').property('age', 30)
  g.V().hasLabel('person').count().next()
  g.V().properties('name').toList()
  g.addV().property(list, 'tags').property('tags', 'a').property('tags', 'b')
Memory databases start empty every time they are used.
Type '.exit' or 'quit' to exit.`)
}

// processCommand processes a REPL command or query
func (rs *replState) processCommand(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, ".") || strings.EqualFold(input, "quit") {
		switch strings.ToLower(input) {
		case ".help":
			rs.printHelp()
			return nil
		case ".exit", "quit":
			rs.isRunning = false
			return nil
		default:
			return errors.Errorf("unknown command: %s; type '.help' for assistance", input)
		}
	}

	fields := strings.Fields(input)
	keyword := strings.ToUpper(strings.Join(fields[:min(2, len(fields))], " "))
	switch keyword {
	case "CREATE DATABASE":
		switch {
		case len(fields) == 3:
			return rs.createDatabase(fields[2], "")
		case len(fields) == 5 && strings.EqualFold(fields[3], "USING"):
			return rs.createDatabase(fields[2], fields[4])
		}
		return errors.New("usage: CREATE DATABASE <name> [USING <backend>]")
	case "USE DATABASE":
		if len(fields) != 3 {
			return errors.New("usage: USE DATABASE <name>")
		}
		return rs.useDatabase(fields[2])
	case "DROP DATABASE":
		if len(fields) != 3 {
			return errors.New("usage: DROP DATABASE <name>")
		}
		return rs.dropDatabase(fields[2])
	case "SHOW DATABASES":
		rs.showDatabases()
		return nil
	case "DESCRIBE DATABASE":
		return rs.describeDatabase(ctx)
	case "SHOW VERTICES":
		return rs.showVertices(ctx, fields[2:])
	}

	return rs.executeQuery(ctx, input)
}

// run runs the REPL loop until .exit or end of input
func (rs *replState) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rs.log.Info("Starting KiteDB REPL")
	scanner := bufio.NewScanner(rs.in)
	fmt.Fprintln(rs.out, "Welcome to KiteDB. Type '.help' for commands or 'quit' to exit.")

	for rs.isRunning {
		prompt := "kitedb"
		if rs.dbName != "" {
			prompt = fmt.Sprintf("kitedb(%s)", rs.dbName)
		}
		fmt.Fprintf(rs.out, "%s> ", prompt)
		if !scanner.Scan() {
			break
		}
		if err := rs.processCommand(ctx, scanner.Text()); err != nil {
			fmt.Fprintf(rs.out, "Error: %v\n", err)
		}
	}

	fmt.Fprintln(rs.out, "Goodbye!")
	if err := rs.closeDatabase(); err != nil {
		return err
	}
	return scanner.Err()
}

func (rs *replState) closeDatabase() error {
	if rs.db == nil {
		return nil
	}
	err := rs.db.Close()
	rs.db = nil
	rs.dbName = ""
	return err
}
