package models

import (
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RecordsKey is the top-level key that wraps a record list.
const RecordsKey = "posts"

// FieldType is the JSON type of a record field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
)

// FieldSpec declares one record field.
type FieldSpec struct {
	Name        string    `json:"name" yaml:"name" binding:"required"`
	Type        FieldType `json:"type" yaml:"type" binding:"omitempty,oneof=string number integer boolean"`
	Required    bool      `json:"required,omitempty" yaml:"required"`
	Description string    `json:"description,omitempty" yaml:"description"`
}

// RecordSchema is an ordered list of fields. Declaration order is the order
// in which fields appear in persisted records.
type RecordSchema struct {
	Name   string      `json:"name,omitempty" yaml:"name"`
	Fields []FieldSpec `json:"fields" yaml:"fields" binding:"required,min=1,dive"`
}

// Validate rejects empty schemas, duplicate names and unknown types.
func (s RecordSchema) Validate() error {
	if len(s.Fields) == 0 {
		return NewScrapeError(ErrCodeInvalidConfig, "record schema declares no fields", nil)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return NewScrapeError(ErrCodeInvalidConfig, "record schema has a field without a name", nil)
		}
		if _, dup := seen[name]; dup {
			return NewScrapeError(ErrCodeInvalidConfig, fmt.Sprintf("record schema declares %q twice", name), nil)
		}
		seen[name] = struct{}{}
		switch f.Type {
		case "", FieldString, FieldNumber, FieldInteger, FieldBoolean:
		default:
			return NewScrapeError(ErrCodeInvalidConfig, fmt.Sprintf("field %q has unknown type %q", name, f.Type), nil)
		}
	}
	return nil
}

// FieldNames returns the declared field names in order.
func (s RecordSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// JSONSchema renders one record as a JSON Schema object.
func (s RecordSchema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string
	for _, f := range s.Fields {
		typ := f.Type
		if typ == "" {
			typ = FieldString
		}
		props.Set(f.Name, &jsonschema.Schema{Type: string(typ), Description: f.Description})
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Title:      s.Name,
		Properties: props,
		Required:   required,
	}
}

// ListSchema renders {"posts": [record, ...]}.
func (s RecordSchema) ListSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set(RecordsKey, &jsonschema.Schema{Type: "array", Items: s.JSONSchema()})
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{RecordsKey},
	}
}

// Record is one extracted item. Keys keep insertion order when marshaled.
type Record = *orderedmap.OrderedMap[string, any]

// NewRecord returns an empty record.
func NewRecord() Record {
	return orderedmap.New[string, any]()
}

// OrderRecord returns a copy of src whose keys follow the schema: declared
// fields first in declaration order, then any extra fields in src order.
// Declared fields missing from src are not invented.
func OrderRecord(schema RecordSchema, src Record) Record {
	out := NewRecord()
	if src == nil {
		return out
	}
	for _, f := range schema.Fields {
		if v, ok := src.Get(f.Name); ok {
			out.Set(f.Name, v)
		}
	}
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := out.Get(pair.Key); !ok {
			out.Set(pair.Key, pair.Value)
		}
	}
	return out
}
