package models

import "fmt"

// FieldType is the logical type of a schema field
type FieldType string

const (
	FieldTypeInt64   FieldType = "int64"
	FieldTypeString  FieldType = "string"
	FieldTypeFloat32 FieldType = "float32"
	FieldTypeDate    FieldType = "date"
)

// Logical field names. Every codec uses these verbatim.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldRating      = "rating"
	FieldReleaseDate = "releaseDate"
)

// Field is one named, typed field of the logical schema
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Nullable bool      `json:"nullable"`
	// Column is the relational column name
	Column string `json:"column"`
}

// Schema is an ordered list of fields
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// MovieSchema is the canonical definition shared by every codec.
// Field order is fixed: id, name, rating, releaseDate.
var MovieSchema = Schema{
	Name: "movie",
	Fields: []Field{
		{Name: FieldID, Type: FieldTypeInt64, Nullable: true, Column: "id"},
		{Name: FieldName, Type: FieldTypeString, Column: "name"},
		{Name: FieldRating, Type: FieldTypeFloat32, Column: "rating"},
		{Name: FieldReleaseDate, Type: FieldTypeDate, Column: "release_date"},
	},
}

// Names returns the field names in schema order
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Columns returns the relational column names in schema order
func (s Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Column
	}
	return cols
}

// Field looks up a field by name
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Index returns the position of the named field, or -1
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Len returns the number of fields
func (s Schema) Len() int {
	return len(s.Fields)
}

func (f Field) String() string {
	null := "required"
	if f.Nullable {
		null = "optional"
	}
	return fmt.Sprintf("%s %s %s", f.Name, f.Type, null)
}
