package graphdb

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitedb/graphdb/kvs"
)

// inTx runs fn in a committed read-write transaction
func inTx(t *testing.T, ds kvs.Datastore, fn func(tx kvs.Transaction)) {
	tx, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func TestCreateVertex(t *testing.T) {
	ds := kvs.NewMemory()
	repo := NewRepository()

	var v Vertex
	inTx(t, ds, func(tx kvs.Transaction) {
		var err error
		v, err = repo.CreateVertex(tx, []Value{StringValue("person"), StringValue("name"), StringValue("alice")})
		require.NoError(t, err)
	})
	assert.Equal(t, "person", v.Label)
	assert.Equal(t, []Value{StringValue("alice")}, v.Properties["name"])
	assert.NotEmpty(t, v.ID)

	inTx(t, ds, func(tx kvs.Transaction) {
		_, err := repo.CreateVertex(tx, []Value{StringValue("person"), StringValue("name")})
		assert.True(t, errors.Is(err, ErrTypeConversion))

		_, err = repo.CreateVertex(tx, []Value{Int64Value(1)})
		assert.True(t, errors.Is(err, ErrTypeConversion))

		d, err := repo.CreateVertex(tx, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultVertexLabel, d.Label)
	})
}

func TestReadVertices(t *testing.T) {
	ds := kvs.NewMemory()
	repo := NewRepository()

	var created []Vertex
	inTx(t, ds, func(tx kvs.Transaction) {
		for _, label := range []string{"person", "dog", "person", "person/admin"} {
			v, err := repo.CreateVertex(tx, []Value{StringValue(label)})
			require.NoError(t, err)
			created = append(created, v)
		}
	})

	inTx(t, ds, func(tx kvs.Transaction) {
		all, err := repo.ReadVertices(tx, VertexFilter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i := range all {
			assert.Equal(t, created[i].ID, all[i].ID, "scan order is creation order")
		}

		people, err := repo.ReadVertices(tx, VertexFilter{Labels: []string{"person"}})
		require.NoError(t, err)
		require.Len(t, people, 2)
		assert.Equal(t, created[0].ID, people[0].ID)
		assert.Equal(t, created[2].ID, people[1].ID)

		byID, err := repo.ReadVertices(tx, VertexFilter{IDs: []string{created[2].ID, "missing", created[1].ID}})
		require.NoError(t, err)
		require.Len(t, byID, 2)
		assert.Equal(t, created[2].ID, byID[0].ID)
		assert.Equal(t, created[1].ID, byID[1].ID)

		labels, err := repo.Labels(tx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"person": 2, "dog": 1, "person/admin": 1}, labels)
	})
}

func TestSetPropertyCardinality(t *testing.T) {
	ds := kvs.NewMemory()
	repo := NewRepository()

	var v Vertex
	inTx(t, ds, func(tx kvs.Transaction) {
		var err error
		v, err = repo.CreateVertex(tx, nil)
		require.NoError(t, err)
	})

	set := func(args ...Value) {
		inTx(t, ds, func(tx kvs.Transaction) {
			_, err := repo.SetProperty(tx, v, args, Single)
			require.NoError(t, err)
		})
	}
	set(CardinalityValue(List), StringValue("tags"), StringValue("a"))
	set(CardinalityValue(List), StringValue("tags"), StringValue("b"))
	set(StringValue("name"), StringValue("alice"))
	set(StringValue("name"), StringValue("bob"))
	set(CardinalityValue(Set), StringValue("langs"), StringValue("go"))
	set(CardinalityValue(Set), StringValue("langs"), StringValue("go"))

	inTx(t, ds, func(tx kvs.Transaction) {
		stored, err := repo.ReadProperties(tx, v, nil)
		require.NoError(t, err)
		assert.Equal(t, []Value{StringValue("a"), StringValue("b")}, stored.Properties["tags"])
		assert.Equal(t, []Value{StringValue("bob")}, stored.Properties["name"])
		assert.Equal(t, []Value{StringValue("go")}, stored.Properties["langs"])

		only, err := repo.ReadProperties(tx, v, []string{"name", "absent"})
		require.NoError(t, err)
		assert.Equal(t, map[string][]Value{"name": {StringValue("bob")}}, only.Properties)
	})
}

func TestSetPropertyMissingVertex(t *testing.T) {
	ds := kvs.NewMemory()
	repo := NewRepository()
	ghost := Vertex{ID: "missing"}

	tx, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = repo.SetProperty(tx, ghost, []Value{StringValue("k"), StringValue("v")}, Single)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = repo.ReadProperties(tx, ghost, nil)
	assert.True(t, errors.Is(err, ErrNotFound))

	all, err := repo.ReadVertices(tx, VertexFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "a property write never creates a vertex")
}

func TestSetPropertyOnReadOnlyTransaction(t *testing.T) {
	ds := kvs.NewMemory()
	repo := NewRepository()

	var v Vertex
	inTx(t, ds, func(tx kvs.Transaction) {
		var err error
		v, err = repo.CreateVertex(tx, nil)
		require.NoError(t, err)
	})

	tx, err := ds.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = repo.SetProperty(tx, v, []Value{StringValue("k"), StringValue("v")}, Single)
	assert.True(t, errors.Is(err, kvs.ErrTxReadOnly))
}

func TestCodecRejectsCorruptRecords(t *testing.T) {
	v := Vertex{ID: "1", Label: "person", Properties: map[string][]Value{
		"name":   {StringValue("alice")},
		"age":    {Int64Value(30)},
		"active": {BoolValue(true)},
		"none":   {Null},
	}}
	data, err := encodeVertex(v)
	require.NoError(t, err)

	decoded, err := decodeVertex(data)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)

	_, err = decodeVertex(data[:len(data)-3])
	assert.Error(t, err)
	_, err = decodeVertex(append([]byte{9}, data[1:]...))
	assert.Error(t, err)
	_, err = decodeVertex(nil)
	assert.Error(t, err)

	propCountAt := 1 + 4 + len(v.ID) + 4 + len(v.Label)
	huge := make([]byte, len(data))
	copy(huge, data)
	binary.LittleEndian.PutUint32(huge[propCountAt:], 0xFFFFFFFF)
	_, err = decodeVertex(huge)
	assert.Error(t, err)

	// first key in sorted order is "active"
	valueCountAt := propCountAt + 4 + 4 + len("active")
	copy(huge, data)
	binary.LittleEndian.PutUint32(huge[valueCountAt:], 0xFFFFFFFF)
	_, err = decodeVertex(huge)
	assert.Error(t, err)

	ds := kvs.NewMemory()
	defer ds.Close()
	tx, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(vertexKey(v.ID), huge))
	require.NoError(t, tx.Commit())

	tx, err = ds.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = NewRepository().ReadVertices(tx, VertexFilter{})
	assert.Error(t, err)
}
