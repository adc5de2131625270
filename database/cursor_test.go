package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func newTestCursor(t *testing.T, documents ...any) *mongo.Cursor {
	t.Helper()
	cursor, err := mongo.NewCursorFromDocuments(documents, nil, nil)
	require.NoError(t, err)
	return cursor
}

func TestModelCursorAll(t *testing.T) {
	cursor := newModelCursor[testUser](newTestCursor(t,
		bson.D{{Key: "email", Value: "a@b.c"}},
		bson.D{{Key: "email", Value: "d@e.f"}},
	))

	users, err := cursor.All(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@b.c", users[0].Email)
	assert.Equal(t, "d@e.f", users[1].Email)
}

func TestModelCursorAllEmpty(t *testing.T) {
	cursor := newModelCursor[testUser](newTestCursor(t))

	users, err := cursor.All(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestModelCursorIteration(t *testing.T) {
	cursor := newModelCursor[testUser](newTestCursor(t,
		bson.D{{Key: "email", Value: "a@b.c"}},
	))
	defer cursor.Close(context.Background())

	ctx := context.Background()
	require.True(t, cursor.Next(ctx))

	user, err := cursor.Decode()
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", user.Email)

	assert.False(t, cursor.Next(ctx))
	assert.NoError(t, cursor.Err())
}
