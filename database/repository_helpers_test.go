package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func newTestRepository(opts RepositoryOptions) *MongoRepository[*testUser] {
	return &MongoRepository[*testUser]{
		Options: opts,
		schema:  NewSchema(&testUser{}),
	}
}

func TestToBsonMap(t *testing.T) {
	doc, err := toBsonMap(nil)
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, doc)

	original := bson.M{"email": "a@b.c"}
	doc, err = toBsonMap(original)
	require.NoError(t, err)
	assert.Equal(t, original, doc)

	doc, err = toBsonMap(bson.D{{Key: "email", Value: "a@b.c"}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"email": "a@b.c"}, doc)

	// Structs are converted through their bson tags.
	doc, err = toBsonMap(&testUser{Email: "a@b.c", FullName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", doc["email"])
	assert.Equal(t, "Ada", doc["full_name"])
	assert.NotContains(t, doc, "Secret")
}

func TestFixQuery(t *testing.T) {
	repository := newTestRepository(RepositoryOptions{})

	assert.Equal(t, bson.M{}, repository.fixQuery(nil))
	assert.Equal(t, bson.M{"email": "a@b.c"}, repository.fixQuery(bson.M{"email": "a@b.c"}))

	// Soft delete repositories only see documents whose deleted field is
	// still null.
	repository = newTestRepository(RepositoryOptions{Deleted: true})
	assert.Equal(t, bson.M{
		And: []any{
			bson.M{"email": "a@b.c"},
			bson.M{DELETED: bson.M{Type: 10}},
		},
	}, repository.fixQuery(bson.M{"email": "a@b.c"}))
}

func TestPrepareInsertDocument(t *testing.T) {
	repository := newTestRepository(RepositoryOptions{Created: true, Modified: true, Deleted: true})

	document, err := repository.prepareInsertDocument(&testUser{Email: "a@b.c"})
	require.NoError(t, err)

	assert.Equal(t, "a@b.c", document["email"])
	assert.NotNil(t, document[CREATED])
	assert.NotNil(t, document[MODIFIED])

	deleted, ok := document[DELETED]
	require.True(t, ok)
	assert.Nil(t, deleted)
}

func TestPrepareUpdateDocumentPlainFields(t *testing.T) {
	repository := newTestRepository(RepositoryOptions{Modified: true})

	update, err := repository.prepareUpdateDocument(bson.M{"email": "a@b.c"}, UpdateOptions{}, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		Set:         bson.M{"email": "a@b.c"},
		CurrentDate: bson.M{MODIFIED: true},
	}, update)
}

func TestPrepareUpdateDocumentRejectsMixedUpdate(t *testing.T) {
	repository := newTestRepository(RepositoryOptions{})

	_, err := repository.prepareUpdateDocument(bson.M{
		"email": "a@b.c",
		Inc:     bson.M{"age": 1},
	}, UpdateOptions{}, UpdateOptions{})
	require.ErrorContains(t, err, "mix between fields and commands")
}

func TestPrepareUpdateDocumentStripsManagedFields(t *testing.T) {
	repository := newTestRepository(RepositoryOptions{Created: true, Modified: true, Deleted: true})

	update, err := repository.prepareUpdateDocument(bson.M{
		"email":  "a@b.c",
		CREATED:  "hacked",
		MODIFIED: "hacked",
		DELETED:  "hacked",
	}, UpdateOptions{}, UpdateOptions{})
	require.NoError(t, err)

	set, ok := update[Set].(bson.M)
	require.True(t, ok)
	assert.Equal(t, bson.M{"email": "a@b.c"}, set)
	assert.Equal(t, bson.M{MODIFIED: true}, update[CurrentDate])
}

func TestPrepareUpdateDocumentOperatorUpdate(t *testing.T) {
	repository := newTestRepository(RepositoryOptions{Modified: true})

	update, err := repository.prepareUpdateDocument(bson.M{
		Inc: bson.M{"age": 1},
	}, UpdateOptions{}, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		Inc:         bson.M{"age": 1},
		CurrentDate: bson.M{MODIFIED: true},
	}, update)
}

func TestPrepareUpdateDocumentUpsertSetsCreated(t *testing.T) {
	repository := newTestRepository(RepositoryOptions{Created: true, Deleted: true})

	update, err := repository.prepareUpdateDocument(bson.M{"email": "a@b.c"}, UpdateOptions{}, UpdateOptions{Insert: true})
	require.NoError(t, err)

	setOnInsert, ok := update[SetOnInsert].(bson.M)
	require.True(t, ok)
	assert.NotNil(t, setOnInsert[CREATED])

	deleted, ok := setOnInsert[DELETED]
	require.True(t, ok)
	assert.Nil(t, deleted)
}

func TestPrepareUpdateDocumentRejectsEmptyUpdate(t *testing.T) {
	repository := newTestRepository(RepositoryOptions{})

	_, err := repository.prepareUpdateDocument(bson.M{}, UpdateOptions{}, UpdateOptions{})
	require.ErrorContains(t, err, "empty")

	// An update that only tries to touch managed fields is empty after the
	// strip as well.
	repository = newTestRepository(RepositoryOptions{Created: true})
	_, err = repository.prepareUpdateDocument(bson.M{CREATED: "hacked"}, UpdateOptions{}, UpdateOptions{})
	require.ErrorContains(t, err, "empty")
}

func TestMapMongoError(t *testing.T) {
	assert.NoError(t, mapMongoError(nil))

	err := mapMongoError(mongo.ErrNoDocuments)
	assert.ErrorIs(t, err, ErrNotFound)

	err = mapMongoError(mongo.WriteException{WriteErrors: mongo.WriteErrors{
		{Code: 11000, Message: "E11000 duplicate key"},
	}})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = mapMongoError(mongo.WriteException{WriteErrors: mongo.WriteErrors{
		{Code: 121, Message: "Document failed validation"},
	}})
	assert.ErrorIs(t, err, ErrValidation)

	err = mapMongoError(mongo.CommandError{Code: 11000, Message: "duplicate"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = mapMongoError(errors.New("boom"))
	assert.ErrorIs(t, err, ErrOperationFailed)
}
