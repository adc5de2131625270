package database

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ModelCursor streams the result of a query as typed models instead of raw
// documents. It is a thin adapter over the driver cursor and follows the same
// iteration contract: Next, Decode, Err, Close.
type ModelCursor[T any] struct {
	cursor *mongo.Cursor
}

func newModelCursor[T any](cursor *mongo.Cursor) *ModelCursor[T] {
	return &ModelCursor[T]{cursor: cursor}
}

// Next advances the cursor. It returns false when the cursor is exhausted or
// an error occurred, check Err afterwards.
func (c *ModelCursor[T]) Next(ctx context.Context) bool {
	return c.cursor.Next(ctx)
}

// Decode decodes the current document into a model.
func (c *ModelCursor[T]) Decode() (*T, error) {
	receiver := new(T)
	if err := c.cursor.Decode(receiver); err != nil {
		return nil, mapMongoError(err)
	}
	return receiver, nil
}

// All drains the cursor into a slice and closes it.
func (c *ModelCursor[T]) All(ctx context.Context) ([]T, error) {
	var receiver []T
	if err := c.cursor.All(ctx, &receiver); err != nil {
		return nil, mapMongoError(err)
	}
	if receiver == nil {
		return []T{}, nil
	}
	return receiver, nil
}

// Err returns the last error seen by the cursor.
func (c *ModelCursor[T]) Err() error {
	return c.cursor.Err()
}

// Close closes the cursor. All does this automatically.
func (c *ModelCursor[T]) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}
