package database

import (
	"context"
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	ID             = "_id"
	CREATED        = "created"
	MODIFIED       = "modified"
	DELETED        = "deleted"
	COMMAND_PREFIX = "$"
)

var validate = validator.New()

// newModelInstance returns a usable zero value of the model. Models are
// normally pointer types, the zero value of those is a nil pointer that
// cannot receive method calls.
func newModelInstance[T IModel]() T {
	var instance T
	value := reflect.ValueOf(instance)
	if value.Kind() == reflect.Pointer && value.IsNil() {
		instance = reflect.New(value.Type().Elem()).Interface().(T)
	}
	return instance
}

// MongoRepository is the MongoDB implementation of Repository.
type MongoRepository[T IModel] struct {
	Options    RepositoryOptions
	collection *mongo.Collection
	schema     *Schema
	connector  *MongoConnector
	datasource *Datasource
}

// NewMongoRepository registers the model in the datasource and binds a
// repository to its collection.
func NewMongoRepository[T IModel](ds *Datasource, opts RepositoryOptions) (Repository[T], error) {
	instance := newModelInstance[T]()
	collectionName := instance.GetTableName()

	schema := NewSchema(instance)

	if err := ds.RegisterModel(instance); err != nil {
		return nil, err
	}

	tmp, err := ds.GetModelConnector(instance)
	if err != nil {
		return nil, err
	}

	connector, ok := tmp.(*MongoConnector)
	if !ok {
		return nil, errors.New("the connector for model " + instance.GetModelName() + " is not a MongoConnector")
	}

	repository := &MongoRepository[T]{
		Options:    opts,
		collection: connector.Database().Collection(collectionName),
		schema:     schema,
		connector:  connector,
		datasource: ds,
	}

	if err := RegisterDatasourceRepository(ds, instance, repository); err != nil {
		return nil, err
	}

	return repository, nil
}

func (repository *MongoRepository[T]) GetCollection() *mongo.Collection {
	return repository.collection
}

func (repository *MongoRepository[T]) GetSchema() *Schema {
	return repository.schema
}

func (repository *MongoRepository[T]) GetConnector() Connector {
	return repository.connector
}

// SyncIndexes reconciles the model's declared indexes with the live
// collection through the connector's index manager.
func (repository *MongoRepository[T]) SyncIndexes(ctx context.Context) error {
	return repository.connector.GetIndexManager().SyncModel(ctx, newModelInstance[T]())
}

func (repository *MongoRepository[T]) Find(ctx context.Context, filter bson.M) ([]T, error) {
	query := repository.fixQuery(filter)

	cursor, err := repository.collection.Find(ctx, query)
	if err != nil {
		return nil, mapMongoError(err)
	}

	return newModelCursor[T](cursor).All(ctx)
}

func (repository *MongoRepository[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	query := repository.fixQuery(filter)

	result := repository.collection.FindOne(ctx, query)
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, mapMongoError(err)
	}

	receiver := new(T)
	if err := result.Decode(receiver); err != nil {
		return nil, mapMongoError(err)
	}

	return receiver, nil
}

func (repository *MongoRepository[T]) FindById(ctx context.Context, id any) (*T, error) {
	if id == nil {
		return nil, ErrNilID
	}
	return repository.FindOne(ctx, bson.M{ID: id})
}

func (repository *MongoRepository[T]) Insert(ctx context.Context, doc T) (any, error) {
	if hook, ok := any(&doc).(BeforeCreateHook); ok {
		if err := hook.BeforeCreate(); err != nil {
			return nil, err
		}
	}

	if repository.Options.Validate {
		if err := validate.Struct(doc); err != nil {
			return nil, wrapValidationError(err)
		}
	}

	document, err := repository.prepareInsertDocument(doc)
	if err != nil {
		return nil, err
	}

	insertedResult, err := repository.collection.InsertOne(ctx, document)
	if err != nil {
		return nil, mapMongoError(err)
	}

	return insertedResult.InsertedID, nil
}

func (repository *MongoRepository[T]) Create(ctx context.Context, doc T) (*T, error) {
	insertedID, err := repository.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}

	return repository.FindById(ctx, insertedID)
}

func (repository *MongoRepository[T]) FindOneOrCreate(ctx context.Context, filter bson.M, doc T) (*T, error) {
	if hook, ok := any(&doc).(BeforeCreateHook); ok {
		if err := hook.BeforeCreate(); err != nil {
			return nil, err
		}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	return repository.applyFindOneAndUpdate(ctx, filter, bson.M{SetOnInsert: doc}, UpdateOptions{Insert: true}, opts)
}

func (repository *MongoRepository[T]) Upsert(ctx context.Context, filter bson.M, update any) error {
	if update == nil {
		return ErrNilUpdate
	}

	query := repository.fixQuery(filter)

	fixedUpdate, err := repository.prepareUpdateDocument(update, UpdateOptions{}, UpdateOptions{Insert: true})
	if err != nil {
		return err
	}

	updateOptions := options.UpdateOne().SetUpsert(true)

	if _, err := repository.collection.UpdateOne(ctx, query, fixedUpdate, updateOptions); err != nil {
		return mapMongoError(err)
	}

	return nil
}

func (repository *MongoRepository[T]) UpdateOne(ctx context.Context, filter bson.M, update any) error {
	if update == nil {
		return ErrNilUpdate
	}

	query := repository.fixQuery(filter)

	fixedUpdate, err := repository.prepareUpdateDocument(update, UpdateOptions{}, UpdateOptions{})
	if err != nil {
		return err
	}

	if _, err := repository.collection.UpdateOne(ctx, query, fixedUpdate); err != nil {
		return mapMongoError(err)
	}

	return nil
}

func (repository *MongoRepository[T]) UpdateById(ctx context.Context, id any, update any) error {
	if id == nil {
		return ErrNilID
	}
	return repository.UpdateOne(ctx, bson.M{ID: id}, update)
}

func (repository *MongoRepository[T]) FindOneAndUpdate(ctx context.Context, filter bson.M, update any) (*T, error) {
	return repository.applyFindOneAndUpdate(ctx, filter, update, UpdateOptions{}, options.FindOneAndUpdate().SetReturnDocument(options.After))
}

func (repository *MongoRepository[T]) applyFindOneAndUpdate(ctx context.Context, filter bson.M, update any, setCreated UpdateOptions, opts options.Lister[options.FindOneAndUpdateOptions]) (*T, error) {
	if update == nil {
		return nil, ErrNilUpdate
	}

	query := repository.fixQuery(filter)

	fixedUpdate, err := repository.prepareUpdateDocument(update, UpdateOptions{}, setCreated)
	if err != nil {
		return nil, err
	}

	result := repository.collection.FindOneAndUpdate(ctx, query, fixedUpdate, opts)
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, mapMongoError(err)
	}

	receiver := new(T)
	if err := result.Decode(receiver); err != nil {
		return nil, mapMongoError(err)
	}

	return receiver, nil
}

func (repository *MongoRepository[T]) UpdateMany(ctx context.Context, filter bson.M, update any) (int64, error) {
	if update == nil {
		return 0, ErrNilUpdate
	}

	query := repository.fixQuery(filter)

	fixedUpdate, err := repository.prepareUpdateDocument(update, UpdateOptions{}, UpdateOptions{})
	if err != nil {
		return 0, err
	}

	result, err := repository.collection.UpdateMany(ctx, query, fixedUpdate)
	if err != nil {
		return 0, mapMongoError(err)
	}

	return result.ModifiedCount, nil
}

func (repository *MongoRepository[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	query := repository.fixQuery(filter)

	count, err := repository.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, mapMongoError(err)
	}
	return count, nil
}

func (repository *MongoRepository[T]) Exists(ctx context.Context, id any) (bool, error) {
	if id == nil {
		return false, ErrNilID
	}

	doc, err := repository.FindById(ctx, id)
	if err != nil {
		return false, err
	}

	return doc != nil, nil
}

func (repository *MongoRepository[T]) DeleteOne(ctx context.Context, filter bson.M) error {
	query := repository.fixQuery(filter)

	if repository.Options.Deleted {
		result, err := repository.collection.UpdateOne(ctx, query, bson.M{CurrentDate: bson.M{DELETED: true}})
		if err != nil {
			return mapMongoError(err)
		}
		if result.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	}

	result, err := repository.collection.DeleteOne(ctx, query)
	if err != nil {
		return mapMongoError(err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (repository *MongoRepository[T]) DeleteById(ctx context.Context, id any) error {
	if id == nil {
		return ErrNilID
	}
	return repository.DeleteOne(ctx, bson.M{ID: id})
}

func (repository *MongoRepository[T]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	query := repository.fixQuery(filter)

	if repository.Options.Deleted {
		result, err := repository.collection.UpdateMany(ctx, query, bson.M{CurrentDate: bson.M{DELETED: true}})
		if err != nil {
			return 0, mapMongoError(err)
		}
		return result.ModifiedCount, nil
	}

	result, err := repository.collection.DeleteMany(ctx, query)
	if err != nil {
		return 0, mapMongoError(err)
	}

	return result.DeletedCount, nil
}

func (repository *MongoRepository[T]) Aggregate(ctx context.Context, pipeline any) (*ModelCursor[T], error) {
	cursor, err := repository.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return newModelCursor[T](cursor), nil
}
