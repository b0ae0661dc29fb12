package graphdb

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kitedb/graphdb/kvs"
)

// GraphDB is the main database interface: one datastore plus the engine
// that runs traversals against it
type GraphDB struct {
	store    kvs.Datastore
	executor *Executor
	repo     *Repository
	log      *logrus.Entry
}

// Description summarizes an open database
type Description struct {
	Backend  kvs.AdapterName
	Path     string
	Variant  kvs.Variant
	Vertices int64
	Labels   map[string]int64
}

// Open opens the named backend at path
func Open(backend kvs.AdapterName, path string) (*GraphDB, error) {
	store, err := kvs.Open(backend, path)
	if err != nil {
		return nil, err
	}
	return New(store), nil
}

// New wraps an already opened datastore. The GraphDB takes ownership of it.
func New(store kvs.Datastore) *GraphDB {
	log := logrus.WithFields(logrus.Fields{
		"component": "GraphDB",
		"backend":   store.Name(),
		"path":      store.Path(),
	})
	log.Info("Initializing GraphDB")
	return &GraphDB{
		store:    store,
		executor: NewExecutor(store),
		repo:     NewRepository(),
		log:      log,
	}
}

// G returns a traversal source bound to this database
func (db *GraphDB) G() *GraphTraversalSource {
	return NewGraphTraversalSource(db.executor)
}

// ExecuteQuery parses and runs a Gremlin text query. The result list depends on
// the terminal call: toList returns every item, next at most one, hasNext a
// single Bool and iterate nothing.
func (db *GraphDB) ExecuteQuery(ctx context.Context, text string) ([]Value, error) {
	query, err := ParseQuery(text)
	if err != nil {
		return nil, err
	}
	t := db.executor.Traversal(ctx, query.Bytecode)

	switch query.Terminal {
	case TerminalNext:
		item, ok, err := t.Next()
		if err != nil || !ok {
			return nil, err
		}
		return []Value{item}, nil
	case TerminalHasNext:
		ok, err := t.HasNext()
		if err != nil {
			return nil, err
		}
		return []Value{BoolValue(ok)}, nil
	case TerminalIterate:
		return nil, t.Iterate()
	default:
		return t.ToList()
	}
}

// Vertices returns stored vertices, optionally only those with one of labels
func (db *GraphDB) Vertices(ctx context.Context, labels ...string) ([]Vertex, error) {
	var vertices []Vertex
	err := db.view(ctx, func(tx kvs.Transaction) (err error) {
		vertices, err = db.repo.ReadVertices(tx, VertexFilter{Labels: labels})
		return err
	})
	return vertices, err
}

// Labels returns the number of vertices per label
func (db *GraphDB) Labels(ctx context.Context) (map[string]int64, error) {
	var labels map[string]int64
	err := db.view(ctx, func(tx kvs.Transaction) (err error) {
		labels, err = db.repo.Labels(tx)
		return err
	})
	return labels, err
}

// Describe reports the backend and contents of the database
func (db *GraphDB) Describe(ctx context.Context) (Description, error) {
	labels, err := db.Labels(ctx)
	if err != nil {
		return Description{}, err
	}
	desc := Description{
		Backend: db.store.Name(),
		Path:    db.store.Path(),
		Variant: db.store.Variant(),
		Labels:  labels,
	}
	for _, n := range labels {
		desc.Vertices += n
	}
	return desc, nil
}

// Close shuts down the database
func (db *GraphDB) Close() error {
	if err := db.store.Close(); err != nil {
		db.log.WithError(err).Error("Failed to close datastore")
		return errors.Wrap(err, "failed to close database")
	}
	db.log.Info("GraphDB closed")
	return nil
}

func (db *GraphDB) view(ctx context.Context, fn func(tx kvs.Transaction) error) error {
	tx, err := db.store.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}
