package graphdb

import (
	"context"
)

// GraphTraversalSource spawns traversals, g in g.V().count()
type GraphTraversalSource struct {
	exec *Executor
}

// NewGraphTraversalSource binds a traversal source to an executor
func NewGraphTraversalSource(exec *Executor) *GraphTraversalSource {
	return &GraphTraversalSource{exec: exec}
}

func (g *GraphTraversalSource) V(ids ...interface{}) *GraphTraversal {
	return g.start().add("V", ids...)
}

func (g *GraphTraversalSource) E(ids ...interface{}) *GraphTraversal {
	return g.start().add("E", ids...)
}

// AddV starts a traversal creating a vertex; with no label the default is used
func (g *GraphTraversalSource) AddV(label ...interface{}) *GraphTraversal {
	return g.start().add("addV", label...)
}

func (g *GraphTraversalSource) AddE(label ...interface{}) *GraphTraversal {
	return g.start().add("addE", label...)
}

func (g *GraphTraversalSource) start() *GraphTraversal {
	return &GraphTraversal{exec: g.exec}
}

// GraphTraversal is an immutable program under construction. Every step
// method returns a new traversal.
type GraphTraversal struct {
	exec     *Executor
	bytecode Bytecode
	err      error
}

func (t *GraphTraversal) add(operator string, args ...interface{}) *GraphTraversal {
	if t.err != nil {
		return t
	}
	ins, err := NewInstruction(operator, args...)
	if err != nil {
		return &GraphTraversal{exec: t.exec, bytecode: t.bytecode, err: err}
	}
	return &GraphTraversal{exec: t.exec, bytecode: t.bytecode.Add(ins)}
}

func (t *GraphTraversal) AddV(label ...interface{}) *GraphTraversal {
	return t.add("addV", label...)
}

func (t *GraphTraversal) AddE(label ...interface{}) *GraphTraversal {
	return t.add("addE", label...)
}

func (t *GraphTraversal) V(ids ...interface{}) *GraphTraversal {
	return t.add("V", ids...)
}

// Property is property(key, value) or property(cardinality, key[, value])
func (t *GraphTraversal) Property(args ...interface{}) *GraphTraversal {
	return t.add("property", args...)
}

func (t *GraphTraversal) Properties(keys ...interface{}) *GraphTraversal {
	return t.add("properties", keys...)
}

func (t *GraphTraversal) Count() *GraphTraversal {
	return t.add("count")
}

func (t *GraphTraversal) HasLabel(labels ...interface{}) *GraphTraversal {
	return t.add("hasLabel", labels...)
}

func (t *GraphTraversal) HasID(ids ...interface{}) *GraphTraversal {
	return t.add("hasIds", ids...)
}

// Bytecode returns the program built so far
func (t *GraphTraversal) Bytecode() (Bytecode, error) {
	return t.bytecode, t.err
}

func (t *GraphTraversal) String() string {
	return t.bytecode.String()
}

// Traversal binds the program to its executor for one run
func (t *GraphTraversal) Traversal(ctx context.Context) (*Traversal, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.exec.Traversal(ctx, t.bytecode), nil
}

func (t *GraphTraversal) ToList(ctx context.Context) ([]Value, error) {
	tr, err := t.Traversal(ctx)
	if err != nil {
		return nil, err
	}
	return tr.ToList()
}

func (t *GraphTraversal) Next(ctx context.Context) (Value, bool, error) {
	tr, err := t.Traversal(ctx)
	if err != nil {
		return Null, false, err
	}
	return tr.Next()
}

func (t *GraphTraversal) Done(ctx context.Context) (Value, error) {
	tr, err := t.Traversal(ctx)
	if err != nil {
		return Null, err
	}
	return tr.Done()
}

func (t *GraphTraversal) Iterate(ctx context.Context) error {
	tr, err := t.Traversal(ctx)
	if err != nil {
		return err
	}
	return tr.Iterate()
}
