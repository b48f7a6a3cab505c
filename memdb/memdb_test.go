package memdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowguard/rowguard"
	"github.com/rowguard/rowguard/memdb"
	"github.com/rowguard/rowguard/schema"
)

func testSchema() *schema.Schema {
	return schema.New(schema.Table{
		Name: "messages",
		Indexes: []schema.Index{
			{Name: "by_author", Fields: []string{"author"}},
			{Name: "by_author_n", Fields: []string{"author", "n"}},
		},
		SearchIndexes: []schema.SearchIndex{
			{Name: "search_body", Field: "body"},
		},
	})
}

func TestInsertAndGet(t *testing.T) {
	db := memdb.Open(nil)
	ctx := context.Background()

	id, err := db.Insert(ctx, "messages", rowguard.Document{"body": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "messages", id.Table)
	assert.NotEmpty(t, id.Key)

	doc, err := db.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "hello", doc["body"])
	assert.Equal(t, id.String(), doc[rowguard.FieldID])
	assert.NotNil(t, doc[rowguard.FieldCreationTime])

	ref, ok := doc.Ref()
	require.True(t, ok)
	assert.Equal(t, id, ref)
}

func TestGetAbsent(t *testing.T) {
	db := memdb.Open(nil)
	doc, err := db.Get(context.Background(), rowguard.NewID("messages", "nope"))
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestInsertRejectsSystemFields(t *testing.T) {
	db := memdb.Open(nil)
	_, err := db.Insert(context.Background(), "messages", rowguard.Document{rowguard.FieldID: "messages/x"})
	require.Error(t, err)
}

func TestDocumentIsolation(t *testing.T) {
	db := memdb.Open(nil)
	ctx := context.Background()
	original := rowguard.Document{"body": "hello", "tags": []any{"a"}}
	id, err := db.Insert(ctx, "messages", original)
	require.NoError(t, err)

	// Mutating the inserted value or a fetched copy never reaches the store.
	original["body"] = "mutated"
	doc, err := db.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc["body"])

	doc["body"] = "mutated again"
	doc2, err := db.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc2["body"])
}

func TestPatch(t *testing.T) {
	db := memdb.Open(nil)
	ctx := context.Background()
	id, err := db.Insert(ctx, "messages", rowguard.Document{"body": "hello", "author": "alice"})
	require.NoError(t, err)

	require.NoError(t, db.Patch(ctx, id, rowguard.Document{"body": "edited"}))
	doc, err := db.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edited", doc["body"])
	assert.Equal(t, "alice", doc["author"])

	t.Run("absent", func(t *testing.T) {
		err := db.Patch(ctx, rowguard.NewID("messages", "nope"), rowguard.Document{"a": 1})
		assert.ErrorIs(t, err, memdb.ErrNotFound)
	})

	t.Run("system_field", func(t *testing.T) {
		err := db.Patch(ctx, id, rowguard.Document{rowguard.FieldID: "messages/other"})
		require.Error(t, err)
		doc, getErr := db.Get(ctx, id)
		require.NoError(t, getErr)
		assert.Equal(t, id.String(), doc[rowguard.FieldID])
	})
}

func TestReplace(t *testing.T) {
	db := memdb.Open(nil)
	ctx := context.Background()
	id, err := db.Insert(ctx, "messages", rowguard.Document{"body": "hello", "author": "alice"})
	require.NoError(t, err)
	before, err := db.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, db.Replace(ctx, id, rowguard.Document{"body": "rewritten"}))
	doc, err := db.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", doc["body"])
	// Replaced documents lose user fields not in the new value but keep
	// their identity and creation time.
	_, hasAuthor := doc["author"]
	assert.False(t, hasAuthor)
	assert.Equal(t, before[rowguard.FieldID], doc[rowguard.FieldID])
	assert.Equal(t, before[rowguard.FieldCreationTime], doc[rowguard.FieldCreationTime])

	err = db.Replace(ctx, rowguard.NewID("messages", "nope"), rowguard.Document{})
	assert.ErrorIs(t, err, memdb.ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := memdb.Open(nil)
	ctx := context.Background()
	id, err := db.Insert(ctx, "messages", rowguard.Document{"body": "hello"})
	require.NoError(t, err)

	require.NoError(t, db.Delete(ctx, id))
	doc, err := db.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, doc)

	assert.ErrorIs(t, db.Delete(ctx, id), memdb.ErrNotFound)
}
