package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// IModel is implemented by every persisted model.
type IModel interface {
	GetTableName() string
	GetModelName() string
	GetConnectorName() string
	GetId() any
}

// IndexedModel is implemented by models that declare indexes for their
// collection. The declared set is reconciled against the live collection by
// the index manager.
type IndexedModel interface {
	DefineIndexes() Indexes
}

type BeforeCreateHook interface {
	BeforeCreate() error
}

type BeforeUpdateHook interface {
	BeforeUpdate() error
}

type BeforeDeleteHook interface {
	BeforeDelete() error
}

// UUIDModel can be embedded by models that want string ids generated on
// creation instead of server-assigned ObjectIDs.
type UUIDModel struct {
	ID string `bson:"_id,omitempty" json:"id"`
}

func (model *UUIDModel) GetId() any {
	return model.ID
}

func (model *UUIDModel) BeforeCreate() error {
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	return nil
}

// DateTime wraps time.Time with a BSON codec tolerant of legacy documents
// where dates were stored as raw millisecond or second counters.
type DateTime struct {
	time.Time
}

const dateTimeJSONFormat = "2006-01-02T15:04:05.000Z"

func (date *DateTime) UnmarshalBSONValue(t byte, data []byte) error {
	raw := bson.RawValue{Type: bson.Type(t), Value: data}

	switch raw.Type {
	case bson.TypeDateTime:
		*date = DateTime{raw.Time()}
		return nil

	case bson.TypeInt64:
		// Stored as milliseconds since epoch.
		milliseconds, ok := raw.Int64OK()
		if !ok {
			return fmt.Errorf("invalid int64 date value")
		}
		*date = DateTime{time.UnixMilli(milliseconds)}
		return nil

	case bson.TypeInt32:
		// Stored as seconds since epoch.
		seconds, ok := raw.Int32OK()
		if !ok {
			return fmt.Errorf("invalid int32 date value")
		}
		*date = DateTime{time.Unix(int64(seconds), 0)}
		return nil

	default:
		return fmt.Errorf("cannot unmarshal %v into DateTime", raw.Type)
	}
}

func (date DateTime) MarshalBSONValue() (byte, []byte, error) {
	t, data, err := bson.MarshalValue(date.Time)
	return byte(t), data, err
}

func (date DateTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", date.Time.UTC().Format(dateTimeJSONFormat))), nil
}
