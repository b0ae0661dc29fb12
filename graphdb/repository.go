package graphdb

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kitedb/graphdb/kvs"
)

// DefaultVertexLabel is used by addV() without a label
const DefaultVertexLabel = "vertex"

// VertexFilter narrows ReadVertices; empty fields match everything
type VertexFilter struct {
	IDs    []string
	Labels []string
}

// Repository translates vertex operations into transaction calls
type Repository struct {
	index *LabelIndex
	log   *logrus.Entry
}

// NewRepository initializes a new Repository
func NewRepository() *Repository {
	log := logrus.WithField("component", "Repository")
	log.Debug("Initializing Repository")
	return &Repository{
		index: NewLabelIndex(),
		log:   log,
	}
}

// ReadVertices returns the stored vertices matching filter in creation order.
// Ids that do not exist are skipped.
func (r *Repository) ReadVertices(tx kvs.Transaction, filter VertexFilter) ([]Vertex, error) {
	start := time.Now()
	defer func() {
		r.log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("ReadVertices completed")
	}()

	switch {
	case len(filter.IDs) > 0:
		vertices := make([]Vertex, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			v, err := r.get(tx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if matchesLabel(v, filter.Labels) {
				vertices = append(vertices, v)
			}
		}
		return vertices, nil

	case len(filter.Labels) > 0:
		seen := map[string]struct{}{}
		var ids []string
		for _, label := range filter.Labels {
			found, err := r.index.Search(tx, label)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to search label %q", label)
			}
			for _, id := range found {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
		// v7 ids sort in creation order
		sort.Strings(ids)
		vertices := make([]Vertex, 0, len(ids))
		for _, id := range ids {
			v, err := r.get(tx, id)
			if err != nil {
				return nil, err
			}
			vertices = append(vertices, v)
		}
		return vertices, nil
	}

	var vertices []Vertex
	err := tx.Iterate(vertexPrefix, func(key, value []byte) error {
		v, err := decodeVertex(value)
		if err != nil {
			return errors.Wrapf(err, "failed to decode vertex %q", key)
		}
		vertices = append(vertices, v)
		return nil
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to scan vertices")
		return nil, err
	}
	return vertices, nil
}

// CreateVertex writes a new vertex. args[0] is the label, further args are
// inline key/value property pairs.
func (r *Repository) CreateVertex(tx kvs.Transaction, args []Value) (Vertex, error) {
	label := DefaultVertexLabel
	if len(args) > 0 && !args[0].IsNull() {
		s, err := args[0].AsString()
		if err != nil {
			return Vertex{}, errors.Wrap(err, "vertex label")
		}
		label = s
	}

	id, err := uuid.NewV7()
	if err != nil {
		r.log.WithError(err).Error("Failed to allocate vertex id")
		return Vertex{}, errors.Wrap(err, "failed to allocate vertex id")
	}
	v := Vertex{ID: id.String(), Label: label, Properties: map[string][]Value{}}

	var pairs []Value
	if len(args) > 1 {
		pairs = args[1:]
	}
	if len(pairs)%2 != 0 {
		return Vertex{}, errors.Wrapf(ErrTypeConversion, "addV expects key/value pairs after the label, got %d values", len(pairs))
	}
	for i := 0; i < len(pairs); i += 2 {
		key, err := pairs[i].AsString()
		if err != nil {
			return Vertex{}, errors.Wrap(err, "property key")
		}
		applyCardinality(&v, key, pairs[i+1], Single)
	}

	log := r.log.WithFields(logrus.Fields{
		"vertex_id": v.ID,
		"label":     v.Label,
	})
	if err := r.put(tx, v); err != nil {
		log.WithError(err).Error("Failed to write vertex")
		return Vertex{}, err
	}
	if err := r.index.Insert(tx, v.Label, v.ID); err != nil {
		return Vertex{}, errors.Wrap(err, "failed to insert vertex into label index")
	}

	log.Debug("Vertex created")
	return v, nil
}

// SetProperty sets key to value on the stored copy of vertex. args are
// [cardinality] key value; a leading cardinality overrides card.
func (r *Repository) SetProperty(tx kvs.Transaction, vertex Vertex, args []Value, card Cardinality) (Vertex, error) {
	if len(args) > 0 && args[0].Kind() == KindCardinality {
		card, _ = args[0].AsCardinality()
		args = args[1:]
	}
	if len(args) != 2 {
		return Vertex{}, errors.Wrapf(ErrTypeConversion, "property expects a key and a value, got %d arguments", len(args))
	}
	key, err := args[0].AsString()
	if err != nil {
		return Vertex{}, errors.Wrap(err, "property key")
	}

	log := r.log.WithFields(logrus.Fields{
		"vertex_id":   vertex.ID,
		"key":         key,
		"cardinality": card,
	})

	stored, err := r.get(tx, vertex.ID)
	if err != nil {
		log.WithError(err).Error("Failed to read vertex for property update")
		return Vertex{}, err
	}
	applyCardinality(&stored, key, args[1], card)

	if err := r.put(tx, stored); err != nil {
		log.WithError(err).Error("Failed to write updated vertex")
		return Vertex{}, err
	}
	log.Debug("Property set")
	return stored, nil
}

// ReadProperties returns the stored vertex with all of its properties, or
// only the given keys
func (r *Repository) ReadProperties(tx kvs.Transaction, vertex Vertex, keys []string) (Vertex, error) {
	stored, err := r.get(tx, vertex.ID)
	if err != nil {
		return Vertex{}, err
	}
	if len(keys) == 0 {
		return stored, nil
	}
	filtered := make(map[string][]Value, len(keys))
	for _, key := range keys {
		if values, ok := stored.Properties[key]; ok {
			filtered[key] = values
		}
	}
	stored.Properties = filtered
	return stored, nil
}

// Labels returns the number of stored vertices per label
func (r *Repository) Labels(tx kvs.Transaction) (map[string]int64, error) {
	return r.index.Counts(tx)
}

func (r *Repository) get(tx kvs.Transaction, id string) (Vertex, error) {
	data, err := tx.Get(vertexKey(id))
	if errors.Is(err, kvs.ErrKeyNotFound) {
		return Vertex{}, errors.Wrapf(ErrNotFound, "vertex %s", id)
	}
	if err != nil {
		return Vertex{}, errors.Wrapf(err, "failed to read vertex %s", id)
	}
	v, err := decodeVertex(data)
	if err != nil {
		return Vertex{}, errors.Wrapf(err, "failed to decode vertex %s", id)
	}
	return v, nil
}

func (r *Repository) put(tx kvs.Transaction, v Vertex) error {
	data, err := encodeVertex(v)
	if err != nil {
		return err
	}
	if err := tx.Put(vertexKey(v.ID), data); err != nil {
		return errors.Wrapf(err, "failed to write vertex %s", v.ID)
	}
	return nil
}

// applyCardinality stores value under key: Single replaces, List appends,
// Set appends unless an equal value is already present
func applyCardinality(v *Vertex, key string, value Value, card Cardinality) {
	if v.Properties == nil {
		v.Properties = map[string][]Value{}
	}
	switch card {
	case List:
		v.Properties[key] = append(v.Properties[key], value)
	case Set:
		for _, existing := range v.Properties[key] {
			if existing.Equal(value) {
				return
			}
		}
		v.Properties[key] = append(v.Properties[key], value)
	default:
		v.Properties[key] = []Value{value}
	}
}

func matchesLabel(v Vertex, labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, label := range labels {
		if v.Label == label {
			return true
		}
	}
	return false
}
