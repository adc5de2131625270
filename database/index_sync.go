package database

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"github.com/labstack/gommon/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	// idIndexName is the implicit primary key index. It cannot be dropped.
	// https://api.mongodb.com/wiki/current/Indexes.html#Indexes-The%5CidIndex
	idIndexName = "_id_"

	// namespaceNotFoundCode is returned by listIndexes when the collection
	// does not exist yet.
	namespaceNotFoundCode = 26
)

// commandRunner issues a single administrative command and returns the raw
// response. Index commands must run against the primary, the real
// implementation enforces that.
type commandRunner interface {
	RunCommand(ctx context.Context, command bson.D) (bson.Raw, error)
}

type mongoCommandRunner struct {
	db *mongo.Database
}

func (r mongoCommandRunner) RunCommand(ctx context.Context, command bson.D) (bson.Raw, error) {
	opts := options.RunCmd().SetReadPreference(readpref.Primary())
	return r.db.RunCommand(ctx, command, opts).Raw()
}

// MongoIndexManager synchronizes declared indexes with the live collections of
// a connector. It holds no state between calls, every synchronization is a
// fresh read-diff-write pass and repeated calls against an already
// synchronized collection are a no-op.
type MongoIndexManager struct {
	connector *MongoConnector
}

// NewMongoIndexManager creates an index manager bound to the given connector.
func NewMongoIndexManager(connector *MongoConnector) *MongoIndexManager {
	return &MongoIndexManager{connector: connector}
}

// SyncModel synchronizes the indexes declared by the model. Models that do not
// implement IndexedModel are skipped.
func (m *MongoIndexManager) SyncModel(ctx context.Context, model IModel) error {
	indexed, ok := model.(IndexedModel)
	if !ok {
		return nil
	}
	return m.SyncIndexes(ctx, model.GetTableName(), indexed.DefineIndexes())
}

// SyncIndexes brings the collection's index set into agreement with the
// declared indexes: missing indexes are created, indexes whose specification
// changed are dropped and recreated, and indexes present on the collection but
// absent from the declaration are dropped. The implicit "_id_" index is never
// touched.
//
// The passed Indexes value must not be reused by the caller afterwards.
// Concurrent synchronizations of the same collection are not coordinated,
// callers must serialize them.
func (m *MongoIndexManager) SyncIndexes(ctx context.Context, collectionName string, indexes Indexes) error {
	runner := mongoCommandRunner{db: m.connector.Database()}
	return syncIndexes(ctx, runner, collectionName, indexes)
}

func syncIndexes(ctx context.Context, runner commandRunner, collectionName string, indexes Indexes) error {
	existing, err := listExistingIndexes(ctx, runner, collectionName)
	if err != nil {
		return err
	}

	plan, err := buildIndexPlan(indexes, existing)
	if err != nil {
		return err
	}

	if len(plan.toDrop) > 0 {
		log.Debugf("dropping indexes %v on %s", plan.toDrop, collectionName)
		if err := dropIndexes(ctx, runner, collectionName, plan.toDrop); err != nil {
			return err
		}
	}

	if !plan.toCreate.IsEmpty() {
		log.Debugf("creating %d indexes on %s", len(plan.toCreate.list), collectionName)
		if _, err := runner.RunCommand(ctx, plan.toCreate.CreateIndexesCommand(collectionName)); err != nil {
			return err
		}
	}

	return nil
}

type listIndexesResponse struct {
	Cursor struct {
		ID         int64    `bson:"id"`
		FirstBatch []bson.D `bson:"firstBatch"`
	} `bson:"cursor"`
}

// listExistingIndexes returns the index descriptors currently present on the
// collection. A missing collection is reported as an empty set. A paginated
// response is fatal: operating on a partial index inventory could drop indexes
// that are actually in sync.
func listExistingIndexes(ctx context.Context, runner commandRunner, collectionName string) ([]bson.D, error) {
	raw, err := runner.RunCommand(ctx, bson.D{{Key: "listIndexes", Value: collectionName}})
	if err != nil {
		if isNamespaceNotFound(err) {
			// Namespace doesn't exist yet, as such no index is present either.
			return nil, nil
		}
		return nil, err
	}

	var response listIndexesResponse
	if err := bson.Unmarshal(raw, &response); err != nil {
		return nil, errors.Errorf("failed to decode listIndexes response for '%s': %v", collectionName, err)
	}

	if response.Cursor.ID != 0 {
		return nil, errors.Errorf("couldn't list all indexes from '%s': first batch is incomplete", collectionName)
	}

	return response.Cursor.FirstBatch, nil
}

func isNamespaceNotFound(err error) bool {
	var commandErr mongo.CommandError
	return errors.As(err, &commandErr) && commandErr.Code == namespaceNotFoundCode
}

// indexPlan is the outcome of diffing declared indexes against the existing
// descriptors: names to drop and indexes still needing creation, both in
// deterministic declared/listed order.
type indexPlan struct {
	toDrop   []string
	toCreate Indexes
}

// buildIndexPlan classifies every declared index against the existing
// descriptors.
//
// Existing descriptors are looked up by the canonical form of their "key"
// sub-document. Text indexes are persisted by the server under the fixed
// {"_fts": "text", "_ftsx": 1} key regardless of the declaring fields, so the
// declared key document is rewritten to that form before the lookup and the
// original is kept for the weights comparison. Existing indexes matched by key
// but differing in specification are dropped under the name the server
// reports for them. Existing indexes not matched by any declaration are
// dropped, except the implicit "_id_" index.
func buildIndexPlan(indexes Indexes, existing []bson.D) (indexPlan, error) {
	existingByKey := make(map[string]int, len(existing))
	for i, descriptor := range existing {
		key, ok := lookupSubDocument(descriptor, "key")
		if !ok {
			return indexPlan{}, errors.New("existing index descriptor is missing 'key'")
		}
		existingByKey[canonicalKeyForm(key)] = i
	}

	matched := make(map[int]bool, len(existing))
	var plan indexPlan

	for _, index := range indexes.list {
		doc := index.Document()

		var declaredTextKeys bson.D
		if index.hasTextKey() {
			// Only one text index can exist per collection, the server stores
			// it under the sentinel key form. Keep the declared keys for the
			// weights comparison below.
			declaredTextKeys, _ = lookupSubDocument(doc, "key")
			doc = replaceValue(doc, "key", bson.D{{Key: "_fts", Value: "text"}, {Key: "_ftsx", Value: int32(1)}})
		}

		key, _ := lookupSubDocument(doc, "key")
		pos, ok := existingByKey[canonicalKeyForm(key)]
		if !ok {
			plan.toCreate.list = append(plan.toCreate.list, index)
			continue
		}
		delete(existingByKey, canonicalKeyForm(key))
		matched[pos] = true

		// "ns" and "v" are server metadata, they take no part in the comparison.
		descriptor := stripVolatileFields(existing[pos])
		existingName, err := descriptorName(descriptor)
		if err != nil {
			return indexPlan{}, err
		}

		if declaredTextKeys != nil {
			if existingWeights, ok := lookupSubDocument(descriptor, "weights"); ok {
				// Declared text keys become weights of 1 once saved. Custom
				// weights are not supported: any other weight means the index
				// is rebuilt with defaults.
				if documentsEqual(expectedTextWeights(declaredTextKeys), existingWeights) {
					continue
				}
				plan.toDrop = append(plan.toDrop, existingName)
				plan.toCreate.list = append(plan.toCreate.list, index)
				continue
			}
		}

		if documentsEqual(doc, descriptor) {
			continue
		}

		plan.toDrop = append(plan.toDrop, existingName)
		plan.toCreate.list = append(plan.toCreate.list, index)
	}

	for i, descriptor := range existing {
		if matched[i] {
			continue
		}
		name, err := descriptorName(descriptor)
		if err != nil {
			return indexPlan{}, err
		}
		if name != idIndexName {
			plan.toDrop = append(plan.toDrop, name)
		}
	}

	return plan, nil
}

// dropIndexes removes the named indexes. Dropping multiple indexes with a
// single command requires MongoDB 4.2, so when the bulk command fails we fall
// back to one dropIndexes command per name. Both paths remove the same set of
// indexes.
func dropIndexes(ctx context.Context, runner commandRunner, collectionName string, names []string) error {
	bulk := bson.D{{Key: "dropIndexes", Value: collectionName}, {Key: "index", Value: names}}
	if _, err := runner.RunCommand(ctx, bulk); err == nil {
		return nil
	}

	for _, name := range names {
		command := bson.D{{Key: "dropIndexes", Value: collectionName}, {Key: "index", Value: name}}
		if _, err := runner.RunCommand(ctx, command); err != nil {
			return err
		}
	}
	return nil
}

func descriptorName(descriptor bson.D) (string, error) {
	value, ok := lookupValue(descriptor, "name")
	if !ok {
		return "", errors.New("existing index descriptor is missing 'name'")
	}
	name, ok := value.(string)
	if !ok {
		return "", errors.Errorf("existing index descriptor has a non-string 'name': %v", value)
	}
	return name, nil
}

// expectedTextWeights rewrites every "text" value of the declared key document
// to the integer 1, the server's default weight.
func expectedTextWeights(declaredKeys bson.D) bson.D {
	weights := make(bson.D, 0, len(declaredKeys))
	for _, elem := range declaredKeys {
		if value, ok := elem.Value.(string); ok && value == "text" {
			weights = append(weights, bson.E{Key: elem.Key, Value: int32(1)})
			continue
		}
		weights = append(weights, elem)
	}
	return weights
}

// canonicalKeyForm renders a "key" sub-document as a deterministic string so
// that declared and listed forms can be compared regardless of the numeric
// BSON type the server used for the directions.
func canonicalKeyForm(key bson.D) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, elem := range key {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(elem.Key))
		sb.WriteString(": ")
		sb.WriteString(canonicalValueForm(elem.Value))
	}
	sb.WriteByte('}')
	return sb.String()
}

func canonicalValueForm(value any) string {
	if number, ok := normalizeNumeric(value); ok {
		return strconv.FormatInt(number, 10)
	}
	if str, ok := value.(string); ok {
		return strconv.Quote(str)
	}
	return fmt.Sprintf("%v", value)
}

func normalizeNumeric(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// documentsEqual compares two documents with unordered key-set equality and
// exact value equality. Numeric values are normalized before comparison, the
// server does not guarantee the numeric type it returns.
func documentsEqual(a, b bson.D) bool {
	if len(a) != len(b) {
		return false
	}
	for _, elem := range a {
		value, ok := lookupValue(b, elem.Key)
		if !ok || !valuesEqual(elem.Value, value) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if aNumber, ok := normalizeNumeric(a); ok {
		bNumber, ok := normalizeNumeric(b)
		return ok && aNumber == bNumber
	}

	switch aValue := a.(type) {
	case bson.D:
		bValue, ok := b.(bson.D)
		return ok && documentsEqual(aValue, bValue)
	case bson.A:
		bValue, ok := b.(bson.A)
		if !ok || len(aValue) != len(bValue) {
			return false
		}
		for i := range aValue {
			if !valuesEqual(aValue[i], bValue[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

func lookupValue(doc bson.D, key string) (any, bool) {
	for _, elem := range doc {
		if elem.Key == key {
			return elem.Value, true
		}
	}
	return nil, false
}

func lookupSubDocument(doc bson.D, key string) (bson.D, bool) {
	value, ok := lookupValue(doc, key)
	if !ok {
		return nil, false
	}
	sub, ok := value.(bson.D)
	return sub, ok
}

func replaceValue(doc bson.D, key string, value any) bson.D {
	replaced := make(bson.D, len(doc))
	copy(replaced, doc)
	for i, elem := range replaced {
		if elem.Key == key {
			replaced[i].Value = value
		}
	}
	return replaced
}

func stripVolatileFields(descriptor bson.D) bson.D {
	stripped := make(bson.D, 0, len(descriptor))
	for _, elem := range descriptor {
		if elem.Key == "ns" || elem.Key == "v" {
			continue
		}
		stripped = append(stripped, elem)
	}
	return stripped
}
