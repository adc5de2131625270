package database

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Repository is the typed facade over one model's collection. Filters are
// plain bson documents, a higher level query language is out of scope.
type Repository[T IModel] interface {
	// GetSchema returns the schema of the model used by this repository.
	GetSchema() *Schema

	// GetConnector returns the connector used by this repository.
	GetConnector() Connector

	// Find retrieves all documents matching the filter. If no documents
	// match, it returns an empty slice.
	Find(ctx context.Context, filter bson.M) ([]T, error)

	// FindOne retrieves a single document matching the filter, or nil when
	// none matches.
	FindOne(ctx context.Context, filter bson.M) (*T, error)

	// FindById retrieves a single document by its id.
	FindById(ctx context.Context, id any) (*T, error)

	// Insert inserts a new document and returns the inserted id.
	Insert(ctx context.Context, doc T) (any, error)

	// Create inserts a new document and returns the created document.
	Create(ctx context.Context, doc T) (*T, error)

	// FindOneOrCreate finds a document matching the filter or creates a new
	// one if it does not exist.
	FindOneOrCreate(ctx context.Context, filter bson.M, doc T) (*T, error)

	// Upsert updates a document matching the filter or inserts a new one if
	// it does not exist.
	Upsert(ctx context.Context, filter bson.M, update any) error

	// UpdateOne updates a single document matching the filter.
	UpdateOne(ctx context.Context, filter bson.M, update any) error

	// UpdateById updates a single document by its id.
	UpdateById(ctx context.Context, id any, update any) error

	// FindOneAndUpdate finds a single document matching the filter, updates
	// it and returns the updated document.
	FindOneAndUpdate(ctx context.Context, filter bson.M, update any) (*T, error)

	// UpdateMany updates all documents matching the filter and returns the
	// number of modified documents.
	UpdateMany(ctx context.Context, filter bson.M, update any) (int64, error)

	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, filter bson.M) (int64, error)

	// Exists checks if a document with the given id exists.
	Exists(ctx context.Context, id any) (bool, error)

	// DeleteOne deletes a single document matching the filter.
	DeleteOne(ctx context.Context, filter bson.M) error

	// DeleteById deletes a single document by its id.
	DeleteById(ctx context.Context, id any) error

	// DeleteMany deletes all documents matching the filter and returns the
	// number of deleted documents.
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)

	// Aggregate runs an aggregation pipeline and streams the result as typed
	// models.
	Aggregate(ctx context.Context, pipeline any) (*ModelCursor[T], error)

	// SyncIndexes reconciles the model's declared indexes with the live
	// collection.
	SyncIndexes(ctx context.Context) error
}
