package database

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// SortOrder is the direction of a sort key inside an index.
// See https://docs.mongodb.com/manual/core/index-compound/#sort-order
type SortOrder int32

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// indexKey is one field participating in an index: either a sort key with a
// direction or a text key.
type indexKey struct {
	name      string
	direction SortOrder
	text      bool
}

// fragment returns the piece this key contributes to the default index name,
// e.g. "last_seen_1", "id_-1" or "description_text".
func (k indexKey) fragment() string {
	if k.text {
		return k.name + "_text"
	}
	return fmt.Sprintf("%s_%d", k.name, k.direction)
}

// value returns the wire value of this key inside the "key" sub-document.
func (k indexKey) value() any {
	if k.text {
		return "text"
	}
	return int32(k.direction)
}

// IndexOption is a named modifier applied at index creation. Each option maps
// to exactly one key of the createIndexes index document. Options are not
// de-duplicated: a duplicated option is passed through to the server, which
// may reject the command.
//
// See https://docs.mongodb.com/manual/reference/method/db.collection.createIndex/#options
type IndexOption struct {
	name  string
	value any
}

// Background enables background index builds (ignored by modern servers).
func Background() IndexOption {
	return IndexOption{name: "background", value: true}
}

// Unique makes the index reject duplicate values.
func Unique() IndexOption {
	return IndexOption{name: "unique", value: true}
}

// IndexName overrides the derived index name.
func IndexName(name string) IndexOption {
	return IndexOption{name: "name", value: name}
}

// PartialFilterExpression restricts the index to documents matching the filter.
func PartialFilterExpression(filter bson.D) IndexOption {
	return IndexOption{name: "partialFilterExpression", value: filter}
}

// Sparse only indexes documents that contain the indexed fields.
func Sparse() IndexOption {
	return IndexOption{name: "sparse", value: true}
}

// ExpireAfterSeconds turns the index into a TTL index.
func ExpireAfterSeconds(seconds int32) IndexOption {
	return IndexOption{name: "expireAfterSeconds", value: seconds}
}

// StorageEngine passes storage engine specific configuration.
func StorageEngine(engine bson.D) IndexOption {
	return IndexOption{name: "storageEngine", value: engine}
}

// Collation sets language specific comparison rules for the index.
func Collation(collation bson.D) IndexOption {
	return IndexOption{name: "collation", value: collation}
}

// Weights sets the relative significance of fields in a text index. The
// mapping is ordered, field order is preserved in the wire document.
func Weights(weights bson.D) IndexOption {
	return IndexOption{name: "weights", value: weights}
}

// CustomOption passes an arbitrary option key/value pair. This exists for
// forward compatibility with options this package does not know about.
func CustomOption(name string, value any) IndexOption {
	return IndexOption{name: name, value: value}
}

// Index describes one index that should exist on a collection: an ordered list
// of keys plus creation options. The zero value is an empty index, keys are
// added with the Add/With methods.
//
// See https://docs.mongodb.com/manual/indexes/
type Index struct {
	keys    []indexKey
	options []IndexOption
}

// NewIndex makes a single key ascending index.
func NewIndex(key string) Index {
	return NewIndexWithDirection(key, Ascending)
}

// NewIndexWithDirection makes a single key index with the given direction.
func NewIndexWithDirection(key string, direction SortOrder) Index {
	var index Index
	index.AddKeyWithDirection(key, direction)
	return index
}

// NewIndexWithText makes a single key text index.
func NewIndexWithText(key string) Index {
	var index Index
	index.AddKeyWithText(key)
	return index
}

// AddKey appends an ascending key, making the index compound.
func (idx *Index) AddKey(key string) {
	idx.AddKeyWithDirection(key, Ascending)
}

// AddKeyWithDirection appends a sort key with the given direction.
func (idx *Index) AddKeyWithDirection(key string, direction SortOrder) {
	idx.keys = append(idx.keys, indexKey{name: key, direction: direction})
}

// AddKeyWithText appends a text key.
func (idx *Index) AddKeyWithText(key string) {
	idx.keys = append(idx.keys, indexKey{name: key, text: true})
}

// AddOption appends a creation option.
func (idx *Index) AddOption(option IndexOption) {
	idx.options = append(idx.options, option)
}

// WithKey is the builder style version of AddKey.
func (idx Index) WithKey(key string) Index {
	idx.AddKey(key)
	return idx
}

// WithKeyWithDirection is the builder style version of AddKeyWithDirection.
func (idx Index) WithKeyWithDirection(key string, direction SortOrder) Index {
	idx.AddKeyWithDirection(key, direction)
	return idx
}

// WithKeyWithText is the builder style version of AddKeyWithText.
func (idx Index) WithKeyWithText(key string) Index {
	idx.AddKeyWithText(key)
	return idx
}

// WithOption is the builder style version of AddOption.
func (idx Index) WithOption(option IndexOption) Index {
	idx.AddOption(option)
	return idx
}

func (idx Index) hasTextKey() bool {
	for _, key := range idx.keys {
		if key.text {
			return true
		}
	}
	return false
}

// keyDocument builds the "key" sub-document in declared key order.
func (idx Index) keyDocument() bson.D {
	keys := make(bson.D, 0, len(idx.keys))
	for _, key := range idx.keys {
		keys = append(keys, bson.E{Key: key.name, Value: key.value()})
	}
	return keys
}

// Document converts the index into the document expected by the createIndexes
// command. If no explicit name option was supplied, the default name is
// derived by joining the key fragments with underscores, as described in
// https://docs.mongodb.com/manual/indexes/#index-names
func (idx Index) Document() bson.D {
	fragments := make([]string, 0, len(idx.keys))
	for _, key := range idx.keys {
		fragments = append(fragments, key.fragment())
	}

	doc := bson.D{{Key: "key", Value: idx.keyDocument()}}

	named := false
	for _, option := range idx.options {
		if option.name == "name" {
			named = true
		}
		doc = append(doc, bson.E{Key: option.name, Value: option.value})
	}

	if !named {
		doc = append(doc, bson.E{Key: "name", Value: strings.Join(fragments, "_")})
	}

	return doc
}

// Indexes is the ordered list of indexes declared for one collection.
type Indexes struct {
	list []Index
}

// NewIndexes returns an index list with the given indexes.
func NewIndexes(indexes ...Index) Indexes {
	return Indexes{list: indexes}
}

// With is the builder style method to append an index.
func (in Indexes) With(index Index) Indexes {
	in.list = append(in.list, index)
	return in
}

// IsEmpty reports whether the list contains no indexes.
func (in Indexes) IsEmpty() bool {
	return len(in.list) == 0
}

// CreateIndexesCommand builds the createIndexes command document for the given
// collection, carrying every index in declared order.
//
// See https://docs.mongodb.com/manual/reference/command/createIndexes/
func (in Indexes) CreateIndexesCommand(collectionName string) bson.D {
	indexes := make(bson.A, 0, len(in.list))
	for _, index := range in.list {
		indexes = append(indexes, index.Document())
	}

	return bson.D{
		{Key: "createIndexes", Value: collectionName},
		{Key: "indexes", Value: indexes},
	}
}
