package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestIndexDocumentDefaultName(t *testing.T) {
	doc := NewIndex("id").Document()
	assert.Equal(t, bson.D{
		{Key: "key", Value: bson.D{{Key: "id", Value: int32(1)}}},
		{Key: "name", Value: "id_1"},
	}, doc)

	doc = NewIndexWithDirection("id", Descending).Document()
	assert.Equal(t, bson.D{
		{Key: "key", Value: bson.D{{Key: "id", Value: int32(-1)}}},
		{Key: "name", Value: "id_-1"},
	}, doc)

	doc = NewIndexWithDirection("id", Descending).WithKey("last_seen").Document()
	assert.Equal(t, bson.D{
		{Key: "key", Value: bson.D{
			{Key: "id", Value: int32(-1)},
			{Key: "last_seen", Value: int32(1)},
		}},
		{Key: "name", Value: "id_-1_last_seen_1"},
	}, doc)
}

func TestIndexDocumentExplicitNameWins(t *testing.T) {
	doc := NewIndexWithDirection("id", Descending).
		WithKey("last_seen").
		WithOption(IndexName("custom")).
		Document()

	assert.Equal(t, bson.D{
		{Key: "key", Value: bson.D{
			{Key: "id", Value: int32(-1)},
			{Key: "last_seen", Value: int32(1)},
		}},
		{Key: "name", Value: "custom"},
	}, doc)
}

func TestIndexDocumentTextKey(t *testing.T) {
	doc := NewIndexWithText("description").Document()
	assert.Equal(t, bson.D{
		{Key: "key", Value: bson.D{{Key: "description", Value: "text"}}},
		{Key: "name", Value: "description_text"},
	}, doc)

	// A text key mixed with sort keys keeps the declared order in both the
	// key document and the derived name.
	doc = NewIndex("tenant").WithKeyWithText("description").Document()
	assert.Equal(t, bson.D{
		{Key: "key", Value: bson.D{
			{Key: "tenant", Value: int32(1)},
			{Key: "description", Value: "text"},
		}},
		{Key: "name", Value: "tenant_1_description_text"},
	}, doc)
}

func TestIndexDocumentDuplicateOptionsPassThrough(t *testing.T) {
	// Options are not de-duplicated locally, the server decides.
	doc := NewIndex("field").WithOption(Unique()).WithOption(Unique()).Document()

	count := 0
	for _, elem := range doc {
		if elem.Key == "unique" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestIndexOptionWireKeys(t *testing.T) {
	cases := []struct {
		option IndexOption
		name   string
		value  any
	}{
		{Background(), "background", true},
		{Unique(), "unique", true},
		{IndexName("custom"), "name", "custom"},
		{Sparse(), "sparse", true},
		{ExpireAfterSeconds(60), "expireAfterSeconds", int32(60)},
		{PartialFilterExpression(bson.D{{Key: "age", Value: bson.D{{Key: GreaterThan, Value: 5}}}}), "partialFilterExpression", bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 5}}}}},
		{StorageEngine(bson.D{{Key: "wiredTiger", Value: bson.D{}}}), "storageEngine", bson.D{{Key: "wiredTiger", Value: bson.D{}}}},
		{Collation(bson.D{{Key: "locale", Value: "fr"}}), "collation", bson.D{{Key: "locale", Value: "fr"}}},
		{Weights(bson.D{{Key: "title", Value: int32(10)}}), "weights", bson.D{{Key: "title", Value: int32(10)}}},
		{CustomOption("hidden", true), "hidden", true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.name, tc.option.name)
		assert.Equal(t, tc.value, tc.option.value)
	}
}

func TestCreateIndexesCommand(t *testing.T) {
	index := NewIndexWithDirection("id", Descending).
		WithKey("last_seen").
		WithOption(Background()).
		WithOption(Unique())

	index2 := NewIndex("last_seen").WithOption(ExpireAfterSeconds(60))

	indexes := NewIndexes(index, index2)

	assert.Equal(t, bson.D{
		{Key: "createIndexes", Value: "my_collection"},
		{Key: "indexes", Value: bson.A{
			bson.D{
				{Key: "key", Value: bson.D{
					{Key: "id", Value: int32(-1)},
					{Key: "last_seen", Value: int32(1)},
				}},
				{Key: "background", Value: true},
				{Key: "unique", Value: true},
				{Key: "name", Value: "id_-1_last_seen_1"},
			},
			bson.D{
				{Key: "key", Value: bson.D{{Key: "last_seen", Value: int32(1)}}},
				{Key: "expireAfterSeconds", Value: int32(60)},
				{Key: "name", Value: "last_seen_1"},
			},
		}},
	}, indexes.CreateIndexesCommand("my_collection"))
}

func TestIndexesWith(t *testing.T) {
	indexes := NewIndexes()
	assert.True(t, indexes.IsEmpty())

	indexes = indexes.With(NewIndex("field"))
	assert.False(t, indexes.IsEmpty())
	assert.Len(t, indexes.list, 1)
}
