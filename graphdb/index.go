package graphdb

import (
	"bytes"

	"github.com/sirupsen/logrus"

	"kitedb/graphdb/kvs"
)

// Key layout:
//
//	v/<id>          vertex record
//	l/<label>/<id>  label index entry, empty value
var (
	vertexPrefix = []byte("v/")
	labelPrefix  = []byte("l/")
)

func vertexKey(id string) []byte {
	return append(append([]byte{}, vertexPrefix...), id...)
}

func labelIndexPrefix(label string) []byte {
	key := append(append([]byte{}, labelPrefix...), label...)
	return append(key, '/')
}

func labelKey(label, id string) []byte {
	return append(labelIndexPrefix(label), id...)
}

// LabelIndex maps labels to vertex ids inside the key space of a transaction
type LabelIndex struct {
	log *logrus.Entry
}

// NewLabelIndex initializes a new LabelIndex
func NewLabelIndex() *LabelIndex {
	return &LabelIndex{log: logrus.WithField("component", "LabelIndex")}
}

// Insert adds a vertex to the index of its label
func (li *LabelIndex) Insert(tx kvs.Transaction, label, id string) error {
	if err := tx.Put(labelKey(label, id), nil); err != nil {
		li.log.WithError(err).WithField("label", label).Error("Failed to insert label index entry")
		return err
	}
	li.log.WithFields(logrus.Fields{
		"label":     label,
		"vertex_id": id,
	}).Debug("Vertex inserted into label index")
	return nil
}

// Search returns the ids of every vertex with label, in creation order
func (li *LabelIndex) Search(tx kvs.Transaction, label string) ([]string, error) {
	prefix := labelIndexPrefix(label)
	var ids []string
	err := tx.Iterate(prefix, func(key, _ []byte) error {
		id := key[len(prefix):]
		// a longer label sharing this prefix
		if bytes.IndexByte(id, '/') >= 0 {
			return nil
		}
		ids = append(ids, string(id))
		return nil
	})
	if err != nil {
		li.log.WithError(err).WithField("label", label).Error("Failed to scan label index")
		return nil, err
	}
	return ids, nil
}

// Counts returns the number of vertices per label
func (li *LabelIndex) Counts(tx kvs.Transaction) (map[string]int64, error) {
	counts := map[string]int64{}
	err := tx.Iterate(labelPrefix, func(key, _ []byte) error {
		rest := key[len(labelPrefix):]
		// ids never contain '/', labels may
		if i := bytes.LastIndexByte(rest, '/'); i >= 0 {
			counts[string(rest[:i])]++
		}
		return nil
	})
	if err != nil {
		li.log.WithError(err).Error("Failed to scan label index")
		return nil, err
	}
	li.log.WithField("label_count", len(counts)).Debug("Retrieved label counts")
	return counts, nil
}
