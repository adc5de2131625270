package database

import (
	"reflect"
	"strings"

	"github.com/go-errors/errors"
)

// Field describes one struct field of a model and the names it is persisted
// and serialized under.
type Field struct {
	FieldName   string
	BsonName    string
	JsonName    string
	IsPointer   bool
	FieldType   reflect.Type
	StructField reflect.StructField
}

// Schema maps a model's Go field names to their bson and json names. It backs
// runtime-checked field references: queries built from Go field names fail
// early when the field does not exist, instead of silently matching nothing.
type Schema struct {
	Model          IModel
	Name           string
	CollectionName string
	Fields         map[string]*Field
	BsonFields     map[string]*Field
	JSONFields     map[string]*Field
}

func NewSchema(model IModel) *Schema {
	schema := &Schema{
		Model:          model,
		Name:           model.GetModelName(),
		CollectionName: model.GetTableName(),
		Fields:         make(map[string]*Field),
		BsonFields:     make(map[string]*Field),
		JSONFields:     make(map[string]*Field),
	}

	modelType := reflect.TypeOf(model)
	for modelType != nil && modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType != nil && modelType.Kind() == reflect.Struct {
		schema.addFields(modelType)
	}

	return schema
}

func (schema *Schema) addFields(structType reflect.Type) {
	for i := 0; i < structType.NumField(); i++ {
		structField := structType.Field(i)
		if !structField.IsExported() {
			continue
		}

		bsonName, inline, skip := parseBsonTag(structField)
		if skip {
			continue
		}

		if structField.Anonymous && inline {
			embedded := structField.Type
			for embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				schema.addFields(embedded)
			}
			continue
		}

		field := &Field{
			FieldName:   structField.Name,
			BsonName:    bsonName,
			JsonName:    parseJsonTag(structField),
			IsPointer:   structField.Type.Kind() == reflect.Pointer,
			FieldType:   structField.Type,
			StructField: structField,
		}

		schema.Fields[field.FieldName] = field
		schema.BsonFields[field.BsonName] = field
		if field.JsonName != "" {
			schema.JSONFields[field.JsonName] = field
		}
	}
}

// FieldName resolves a Go field name to its bson name.
func (schema *Schema) FieldName(goName string) (string, error) {
	field, ok := schema.Fields[goName]
	if !ok {
		return "", errors.Errorf("model %s has no field %s", schema.Name, goName)
	}
	return field.BsonName, nil
}

// MustFieldName is FieldName that panics on unknown fields. Intended for
// static index declarations where a typo should fail at startup.
func (schema *Schema) MustFieldName(goName string) string {
	name, err := schema.FieldName(goName)
	if err != nil {
		panic(err)
	}
	return name
}

func parseBsonTag(structField reflect.StructField) (name string, inline bool, skip bool) {
	tag, ok := structField.Tag.Lookup("bson")
	if !ok {
		return strings.ToLower(structField.Name), false, false
	}

	parts := strings.Split(tag, ",")
	if parts[0] == "-" {
		return "", false, true
	}

	name = parts[0]
	if name == "" {
		name = strings.ToLower(structField.Name)
	}

	for _, option := range parts[1:] {
		if option == "inline" {
			inline = true
		}
	}

	return name, inline, false
}

func parseJsonTag(structField reflect.StructField) string {
	tag, ok := structField.Tag.Lookup("json")
	if !ok {
		return structField.Name
	}

	parts := strings.Split(tag, ",")
	if parts[0] == "-" {
		return ""
	}
	if parts[0] == "" {
		return structField.Name
	}
	return parts[0]
}
