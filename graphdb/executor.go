package graphdb

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kitedb/graphdb/kvs"
)

// IxResult is one accumulator slot: the value and the operator that produced it
type IxResult struct {
	Source string
	Value  Value
}

// Filled reports whether any step has written the slot
func (r IxResult) Filled() bool { return r.Source != "" }

// ExecutionResult accumulates step results keyed by producing operator
type ExecutionResult struct {
	Vertices    IxResult
	NewVertices IxResult
	Edges       IxResult
	NewEdges    IxResult
	Other       IxResult
}

// FromSource returns the slot last written by operator name, or an empty result
func (r ExecutionResult) FromSource(name string) IxResult {
	for _, slot := range []IxResult{r.Vertices, r.NewVertices, r.Edges, r.NewEdges, r.Other} {
		if slot.Filled() && slot.Source == name {
			return slot
		}
	}
	return IxResult{}
}

// State is the interpreter state threaded between steps
type State struct {
	Result ExecutionResult
	// Source is the operator that established the active stream
	Source     string
	Terminator TerminatorToken
	// Cardinalities holds property(cardinality, key) declarations for the rest of the program
	Cardinalities map[string]Cardinality
}

func (s State) cardinality(key string) Cardinality {
	if card, ok := s.Cardinalities[key]; ok {
		return card
	}
	return Single
}

func (s State) declare(key string, card Cardinality) State {
	cards := make(map[string]Cardinality, len(s.Cardinalities)+1)
	for k, c := range s.Cardinalities {
		cards[k] = c
	}
	cards[key] = card
	s.Cardinalities = cards
	return s
}

// Executor interprets bytecode against a datastore. It keeps no per-program
// state and may be shared by concurrent traversals.
type Executor struct {
	ds   kvs.Datastore
	repo *Repository
	log  *logrus.Entry
}

// NewExecutor initializes a new Executor
func NewExecutor(ds kvs.Datastore) *Executor {
	return &Executor{
		ds:   ds,
		repo: NewRepository(),
		log: logrus.WithFields(logrus.Fields{
			"component": "Executor",
			"backend":   ds.Name(),
		}),
	}
}

// Execute runs every instruction of bytecode in order and returns the final
// state. Every operator is classified before the first step runs.
func (e *Executor) Execute(ctx context.Context, bytecode Bytecode) (State, error) {
	if e.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		e.log.Debugf("Executing bytecode %s\n%# v", bytecode, pretty.Formatter(bytecode.Steps))
	}

	steps := make([]Step, len(bytecode.Steps))
	for i, ins := range bytecode.Steps {
		step, err := ParseStep(ins.Operator)
		if err != nil {
			e.log.WithError(err).WithField("index", i).Error("Failed to classify instruction")
			return State{}, &StepError{Index: i, Operator: ins.Operator, Err: err}
		}
		steps[i] = step
	}

	var st State
	for i, ins := range bytecode.Steps {
		next, err := e.apply(ctx, st, steps[i], ins)
		if err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"index":    i,
				"operator": ins.Operator,
			}).Error("Step failed")
			return st, &StepError{Index: i, Operator: ins.Operator, Err: err}
		}
		st = next
	}
	return st, nil
}

// Apply classifies and runs a single instruction
func (e *Executor) Apply(ctx context.Context, st State, ins Instruction) (State, error) {
	step, err := ParseStep(ins.Operator)
	if err != nil {
		return st, err
	}
	return e.apply(ctx, st, step, ins)
}

func (e *Executor) apply(ctx context.Context, st State, step Step, ins Instruction) (State, error) {
	e.log.WithFields(logrus.Fields{
		"step":   step,
		"kind":   step.Kind(),
		"source": st.Source,
	}).Debug("Applying step")

	switch step.Kind() {
	case StreamingSource:
		return e.applySource(ctx, st, step, ins.Args)
	case ReducingBarrier:
		return e.count(st)
	}

	switch step {
	case StepProperty:
		return e.property(ctx, st, ins.Args)
	case StepProperties:
		return e.properties(ctx, st, ins.Args)
	case StepHasLabel:
		return hasLabel(st, ins.Args)
	case StepHasIDs:
		return st, errors.Wrap(ErrUnsupportedOperator, "hasIds is not implemented")
	}
	return st, errors.Wrapf(ErrUnsupportedOperator, "%s", step)
}

func (e *Executor) applySource(ctx context.Context, st State, step Step, args []Value) (State, error) {
	switch step {
	case StepV:
		ids, err := vertexIDs(args)
		if err != nil {
			return st, err
		}
		var vertices []Vertex
		err = e.withTx(ctx, false, func(tx kvs.Transaction) error {
			vertices, err = e.repo.ReadVertices(tx, VertexFilter{IDs: ids})
			return err
		})
		if err != nil {
			return st, err
		}
		st.Result.Vertices = IxResult{Source: "V", Value: vertexList(vertices)}
		st.Source, st.Terminator = "V", TermVertex

	case StepAddV:
		var created Vertex
		err := e.withTx(ctx, true, func(tx kvs.Transaction) (err error) {
			created, err = e.repo.CreateVertex(tx, args)
			return err
		})
		if err != nil {
			return st, err
		}
		list, err := st.Result.NewVertices.Value.Append(VertexValue(created))
		if err != nil {
			return st, err
		}
		st.Result.NewVertices = IxResult{Source: "addV", Value: list}
		st.Source, st.Terminator = "addV", TermVertex

	// edges have no storage yet; only the stream shape changes
	case StepE:
		st.Result.Edges = IxResult{Source: "E", Value: Null}
		st.Source, st.Terminator = "E", TermEdge
	case StepAddE:
		st.Result.NewEdges = IxResult{Source: "addE", Value: Null}
		st.Source, st.Terminator = "addE", TermEdge
	}
	return st, nil
}

func (e *Executor) property(ctx context.Context, st State, args []Value) (State, error) {
	if len(args) > 0 && args[0].Kind() == KindCardinality {
		card, _ := args[0].AsCardinality()
		if len(args) < 2 {
			return st, errors.Wrap(ErrTypeConversion, "cardinality declaration needs a property key")
		}
		key, err := args[1].AsString()
		if err != nil {
			return st, errors.Wrap(err, "property key")
		}
		log := e.log.WithFields(logrus.Fields{
			"key":         key,
			"cardinality": card,
		})
		if len(args) > 2 {
			log.WithField("ignored_value", args[2]).Debug("Cardinality declared, value not written")
		} else {
			log.Debug("Cardinality declared")
		}
		return st.declare(key, card), nil
	}

	if len(args) != 2 {
		return st, errors.Wrapf(ErrTypeConversion, "property expects a key and a value, got %d arguments", len(args))
	}
	key, err := args[0].AsString()
	if err != nil {
		return st, errors.Wrap(err, "property key")
	}
	card := st.cardinality(key)

	switch st.Source {
	case "V":
		vertices, err := vertexItems(st.Result.Vertices.Value)
		if err != nil {
			return st, err
		}
		err = e.withTx(ctx, true, func(tx kvs.Transaction) error {
			for i, v := range vertices {
				updated, err := e.repo.SetProperty(tx, v, args, card)
				if err != nil {
					return err
				}
				vertices[i] = updated
			}
			return nil
		})
		if err != nil {
			return st, err
		}
		st.Result.Vertices.Value = vertexList(vertices)

	case "addV":
		// fold into the vertex created by the preceding addV
		vertices, err := vertexItems(st.Result.NewVertices.Value)
		if err != nil {
			return st, err
		}
		if len(vertices) == 0 {
			return st, errors.Wrap(ErrNotFound, "no vertex to fold property into")
		}
		last := len(vertices) - 1
		err = e.withTx(ctx, true, func(tx kvs.Transaction) error {
			updated, err := e.repo.SetProperty(tx, vertices[last], args, card)
			if err != nil {
				return err
			}
			vertices[last] = updated
			return nil
		})
		if err != nil {
			return st, err
		}
		st.Result.NewVertices.Value = vertexList(vertices)

	default:
		return st, errors.Wrapf(ErrUnsupportedOperator, "property after %q", st.Source)
	}
	return st, nil
}

func (e *Executor) properties(ctx context.Context, st State, args []Value) (State, error) {
	keys := make([]string, 0, len(args))
	for _, arg := range args {
		key, err := arg.AsString()
		if err != nil {
			return st, errors.Wrap(err, "property key")
		}
		keys = append(keys, key)
	}

	var targets []Vertex
	switch st.Source {
	case "V":
		vertices, err := vertexItems(st.Result.Vertices.Value)
		if err != nil {
			return st, err
		}
		targets = vertices
	case "addV":
		vertices, err := vertexItems(st.Result.NewVertices.Value)
		if err != nil {
			return st, err
		}
		if len(vertices) == 0 {
			return st, errors.Wrap(ErrNotFound, "no vertex to read properties from")
		}
		targets = vertices[len(vertices)-1:]
	default:
		return st, errors.Wrapf(ErrUnsupportedOperator, "properties after %q", st.Source)
	}

	views := make([]Vertex, len(targets))
	err := e.withTx(ctx, false, func(tx kvs.Transaction) error {
		for i, v := range targets {
			view, err := e.repo.ReadProperties(tx, v, keys)
			if err != nil {
				return err
			}
			views[i] = view
		}
		return nil
	})
	if err != nil {
		return st, err
	}

	if st.Source == "V" {
		st.Result.Vertices.Value = vertexList(views)
	}
	st.Result.Other = IxResult{Source: "properties", Value: flattenProperties(views)}
	st.Terminator = TermVertexProperty
	return st, nil
}

// count snapshots the collected value of the live terminator
func (e *Executor) count(st State) (State, error) {
	current, err := Collect(st.Result, st.Terminator, st.Source)
	if err != nil {
		return st, err
	}
	st.Result.Other = IxResult{Source: "count", Value: ListValue(asItems(current)...)}
	st.Terminator = TermInt64
	return st, nil
}

// hasLabel filters both vertex slots independently. Slots no step has filled
// stay empty.
// TODO: filter only the slot of the active source once callers stop relying on both.
func hasLabel(st State, args []Value) (State, error) {
	if len(args) == 0 {
		return st, errors.Wrap(ErrTypeConversion, "hasLabel needs at least one label")
	}
	labels := make([]string, 0, len(args))
	for _, arg := range args {
		label, err := arg.AsString()
		if err != nil {
			return st, errors.Wrap(err, "label")
		}
		labels = append(labels, label)
	}

	for _, slot := range []*IxResult{&st.Result.Vertices, &st.Result.NewVertices} {
		if !slot.Filled() {
			continue
		}
		vertices, err := vertexItems(slot.Value)
		if err != nil {
			return st, err
		}
		kept := vertices[:0]
		for _, v := range vertices {
			if matchesLabel(v, labels) {
				kept = append(kept, v)
			}
		}
		slot.Value = vertexList(kept)
	}
	return st, nil
}

// withTx runs fn in one transaction and commits it. On failure the
// transaction is rolled back and both errors are kept.
func (e *Executor) withTx(ctx context.Context, writable bool, fn func(tx kvs.Transaction) error) error {
	tx, err := e.ds.Begin(ctx, writable)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.log.WithError(rbErr).Error("Failed to roll back transaction")
			return multierror.Append(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Traversal runs a program once and iterates over its collected result.
// A Traversal is not safe for concurrent use.
type Traversal struct {
	ctx      context.Context
	exec     *Executor
	bytecode Bytecode

	ran    bool
	state  State
	result Value
	err    error
	items  []Value
	index  int
}

// Traversal prepares bytecode for execution; nothing runs until the first
// terminal call
func (e *Executor) Traversal(ctx context.Context, bytecode Bytecode) *Traversal {
	return &Traversal{ctx: ctx, exec: e, bytecode: bytecode}
}

func (t *Traversal) run() error {
	if t.ran {
		return t.err
	}
	t.ran = true

	t.state, t.err = t.exec.Execute(t.ctx, t.bytecode)
	if t.err != nil {
		return t.err
	}
	t.result, t.err = Collect(t.state.Result, t.state.Terminator, t.state.Source)
	if t.err != nil {
		return t.err
	}
	t.items = asItems(t.result)
	if t.exec.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		t.exec.log.Debugf("Collected %s\n%# v", t.state.Terminator, pretty.Formatter(t.result.Interface()))
	}
	return nil
}

// State returns the final interpreter state, running the program if needed
func (t *Traversal) State() (State, error) {
	err := t.run()
	return t.state, err
}

// Iterate runs the program for its side effects
func (t *Traversal) Iterate() error {
	return t.run()
}

// ToList returns the collected result as a list
func (t *Traversal) ToList() ([]Value, error) {
	if err := t.run(); err != nil {
		return nil, err
	}
	return append([]Value{}, t.items...), nil
}

// Done returns the single collected value
func (t *Traversal) Done() (Value, error) {
	if err := t.run(); err != nil {
		return Null, err
	}
	if t.result.Kind() != KindList && !t.result.IsNull() {
		return t.result, nil
	}
	if len(t.items) != 1 {
		return Null, errors.Wrapf(ErrTerminatorMismatch, "expected exactly one result, got %d", len(t.items))
	}
	return t.items[0], nil
}

// HasNext reports whether Next has an item left
func (t *Traversal) HasNext() (bool, error) {
	if err := t.run(); err != nil {
		return false, err
	}
	return t.index < len(t.items), nil
}

// Next returns the item under the cursor and advances it. ok is false once
// the list is exhausted.
func (t *Traversal) Next() (Value, bool, error) {
	if err := t.run(); err != nil {
		return Null, false, err
	}
	if t.index >= len(t.items) {
		return Null, false, nil
	}
	item := t.items[t.index]
	t.index++
	return item, true, nil
}

func vertexIDs(args []Value) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		switch arg.Kind() {
		case KindString:
			ids = append(ids, arg.s)
		case KindVertex:
			ids = append(ids, arg.v.ID)
		default:
			return nil, errors.Wrapf(ErrTypeConversion, "vertex id must be a String or Vertex, got %s", arg.Kind())
		}
	}
	return ids, nil
}

func vertexList(vertices []Vertex) Value {
	items := make([]Value, len(vertices))
	for i, v := range vertices {
		items[i] = VertexValue(v)
	}
	return Value{kind: KindList, list: items}
}

// vertexItems reads a slot value as vertices; Null is the empty list
func vertexItems(v Value) ([]Vertex, error) {
	if v.IsNull() {
		return nil, nil
	}
	items, err := v.AsList()
	if err != nil {
		return nil, err
	}
	vertices := make([]Vertex, 0, len(items))
	for _, item := range items {
		vertex, err := item.AsVertex()
		if err != nil {
			return nil, err
		}
		vertices = append(vertices, vertex)
	}
	return vertices, nil
}

// asItems is the list form of a collected value
func asItems(v Value) []Value {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindList:
		items, _ := v.AsList()
		return items
	default:
		return []Value{v}
	}
}
