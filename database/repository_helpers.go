package database

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-errors/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Sentinel errors surfaced by repositories. Driver errors are mapped onto
// these so callers can classify failures with errors.Is.
var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrValidation      = errors.New("document validation failed")
	ErrOperationFailed = errors.New("database operation failed")
	ErrConnection      = errors.New("database connection error")
	ErrNilID           = errors.New("id cannot be nil")
	ErrNilUpdate       = errors.New("update cannot be nil")
)

// mapMongoError maps driver errors onto the package sentinel errors. The
// original driver error stays in the chain.
func mapMongoError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Errorf("%w: %v", ErrNotFound, err)
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, writeError := range writeErr.WriteErrors {
			switch writeError.Code {
			case 11000, 11001:
				return errors.Errorf("%w: %s", ErrDuplicateKey, writeError.Message)
			case 121:
				return errors.Errorf("%w: %s", ErrValidation, writeError.Message)
			default:
				return errors.Errorf("%w: %s", ErrOperationFailed, writeError.Message)
			}
		}
	}

	var bulkWriteErr mongo.BulkWriteException
	if errors.As(err, &bulkWriteErr) {
		return errors.Errorf("%w: %v", ErrOperationFailed, err)
	}

	var commandErr mongo.CommandError
	if errors.As(err, &commandErr) {
		switch commandErr.Code {
		case 11000, 11001:
			return errors.Errorf("%w: %s", ErrDuplicateKey, commandErr.Message)
		case 121:
			return errors.Errorf("%w: %s", ErrValidation, commandErr.Message)
		default:
			return errors.Errorf("%w: %s", ErrOperationFailed, commandErr.Message)
		}
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return errors.Errorf("%w: %v", ErrConnection, err)
	}

	return errors.Errorf("%w: %v", ErrOperationFailed, err)
}

func wrapValidationError(err error) error {
	return errors.Errorf("%w: %v", ErrValidation, err)
}

// fixQuery applies the soft delete filter when the repository manages
// deletions.
func (repository *MongoRepository[T]) fixQuery(query bson.M) bson.M {
	if query == nil {
		query = bson.M{}
	}
	if repository.Options.Deleted {
		query = getSoftDeleteQuery(query)
	}
	return query
}

// getSoftDeleteQuery restricts a query to documents whose "deleted" field is
// still null (BSON type 10).
func getSoftDeleteQuery(query bson.M) bson.M {
	return bson.M{
		And: []any{
			query,
			bson.M{DELETED: bson.M{Type: 10}},
		},
	}
}

func (repository *MongoRepository[T]) prepareInsertDocument(doc any) (bson.M, error) {
	document, err := toBsonMap(doc)
	if err != nil {
		return nil, err
	}

	if repository.Options.Created {
		document[CREATED] = time.Now()
	}

	if repository.Options.Modified {
		document[MODIFIED] = time.Now()
	}

	if repository.Options.Deleted {
		document[DELETED] = nil
	}

	return document, nil
}

// prepareUpdateDocument normalizes an update into operator form. A plain
// field document becomes a $set, a mix of fields and operators is rejected.
// Managed timestamp fields are stripped from the caller's update and
// reapplied through $currentDate / $setOnInsert according to the repository
// options.
func (repository *MongoRepository[T]) prepareUpdateDocument(update any, updateDeleted UpdateOptions, setCreated UpdateOptions) (bson.M, error) {
	document, err := toBsonMap(update)
	if err != nil {
		return nil, err
	}

	hasFields := false
	hasCommands := false
	for key := range document {
		if strings.HasPrefix(key, COMMAND_PREFIX) {
			hasCommands = true
		} else {
			hasFields = true
		}
	}

	if hasFields && hasCommands {
		return nil, errors.New("the update has a mix between fields and commands")
	}

	var newUpdate bson.M
	var bsonSet bson.M

	if hasCommands {
		newUpdate = document
		if set, ok := document[Set]; ok {
			bsonSet, err = toBsonMap(set)
			if err != nil {
				return nil, errors.Errorf("invalid $set value: %T", set)
			}
		} else {
			bsonSet = bson.M{}
		}
	} else {
		newUpdate = bson.M{}
		bsonSet = document
	}

	// The repository owns the managed timestamps, callers cannot set them
	// directly.
	if repository.Options.Created {
		delete(bsonSet, CREATED)
	}
	if repository.Options.Modified {
		delete(bsonSet, MODIFIED)
	}
	if repository.Options.Deleted {
		delete(bsonSet, DELETED)
	}

	if len(bsonSet) > 0 {
		newUpdate[Set] = bsonSet
	} else {
		delete(newUpdate, Set)
	}

	if repository.Options.Modified || repository.Options.Deleted {
		currentDate, err := toBsonMap(newUpdate[CurrentDate])
		if err != nil {
			return nil, errors.New("invalid $currentDate value")
		}

		if repository.Options.Modified {
			currentDate[MODIFIED] = true
		}

		if repository.Options.Deleted {
			if updateDeleted.Update {
				currentDate[DELETED] = true
			} else {
				delete(currentDate, DELETED)
			}
		}

		if len(currentDate) > 0 {
			newUpdate[CurrentDate] = currentDate
		} else {
			delete(newUpdate, CurrentDate)
		}
	}

	if setCreated.Insert && (repository.Options.Created || repository.Options.Deleted) {
		setOnInsert, err := toBsonMap(newUpdate[SetOnInsert])
		if err != nil {
			return nil, errors.New("invalid $setOnInsert value")
		}

		if repository.Options.Created {
			setOnInsert[CREATED] = time.Now()
		}

		if repository.Options.Deleted {
			setOnInsert[DELETED] = nil
		}

		if len(setOnInsert) > 0 {
			newUpdate[SetOnInsert] = setOnInsert
		}
	}

	if len(newUpdate) == 0 {
		return nil, errors.New("the update document is empty")
	}

	return newUpdate, nil
}

// toBsonMap converts any value into a bson.M. Values that already are bson
// documents are converted through the bson codec to preserve types, other
// structs go through JSON.
func toBsonMap(v any) (bson.M, error) {
	switch value := v.(type) {
	case nil:
		return bson.M{}, nil
	case bson.M:
		return value, nil
	case bson.D:
		doc := make(bson.M, len(value))
		for _, elem := range value {
			doc[elem.Key] = elem.Value
		}
		return doc, nil
	}

	data, err := bson.Marshal(v)
	if err == nil {
		var doc bson.M
		if err := bson.Unmarshal(data, &doc); err != nil {
			return nil, errors.Errorf("failed to decode document: %v", err)
		}
		return doc, nil
	}

	// Not bson-encodable (e.g. a plain map with non-string keys rendered by
	// the caller), fall back to JSON.
	raw, err := sonic.Marshal(v)
	if err != nil {
		return nil, errors.Errorf("failed to encode document: %v", err)
	}

	var doc bson.M
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Errorf("failed to decode document: %v", err)
	}
	return doc, nil
}
