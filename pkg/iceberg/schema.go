package iceberg

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	iceberg "github.com/apache/iceberg-go"

	"github.com/ajitpratap0/movieport/pkg/models"
)

// tableSchema is the logical schema with releaseDate as a native date
var tableSchema = buildTableSchema()

// arrowSchema mirrors tableSchema for appends. Fields are matched to the
// table by name, so no field-id metadata is attached.
var arrowSchema = buildArrowSchema()

func icebergType(t models.FieldType) iceberg.Type {
	switch t {
	case models.FieldTypeInt64:
		return iceberg.PrimitiveTypes.Int64
	case models.FieldTypeFloat32:
		return iceberg.PrimitiveTypes.Float32
	case models.FieldTypeDate:
		return iceberg.PrimitiveTypes.Date
	default:
		return iceberg.PrimitiveTypes.String
	}
}

func arrowType(t models.FieldType) arrow.DataType {
	switch t {
	case models.FieldTypeInt64:
		return arrow.PrimitiveTypes.Int64
	case models.FieldTypeFloat32:
		return arrow.PrimitiveTypes.Float32
	case models.FieldTypeDate:
		return arrow.FixedWidthTypes.Date32
	default:
		return arrow.BinaryTypes.String
	}
}

func buildTableSchema() *iceberg.Schema {
	fields := make([]iceberg.NestedField, 0, models.MovieSchema.Len())
	for i, f := range models.MovieSchema.Fields {
		fields = append(fields, iceberg.NestedField{
			ID:       i + 1,
			Name:     f.Name,
			Type:     icebergType(f.Type),
			Required: !f.Nullable,
		})
	}
	return iceberg.NewSchema(0, fields...)
}

func buildArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, 0, models.MovieSchema.Len())
	for _, f := range models.MovieSchema.Fields {
		fields = append(fields, arrow.Field{Name: f.Name, Type: arrowType(f.Type), Nullable: f.Nullable})
	}
	return arrow.NewSchema(fields, nil)
}

// TableSchema returns the schema new tables are created with
func TableSchema() *iceberg.Schema {
	return tableSchema
}

// checkTableSchema verifies that an existing table carries the logical fields
// with the expected types. Field ids are not compared.
func checkTableSchema(sc *iceberg.Schema) error {
	fields := sc.Fields()
	if len(fields) != models.MovieSchema.Len() {
		return fmt.Errorf("expected %d fields, table has %d", models.MovieSchema.Len(), len(fields))
	}
	for _, want := range models.MovieSchema.Fields {
		got, ok := sc.FindFieldByName(want.Name)
		if !ok {
			return fmt.Errorf("field %q not found", want.Name)
		}
		if !got.Type.Equals(icebergType(want.Type)) {
			return fmt.Errorf("field %q has type %s, expected %s", want.Name, got.Type, icebergType(want.Type))
		}
	}
	return nil
}

func buildRecord(mem memory.Allocator, movies []models.Movie) arrow.Record {
	b := array.NewRecordBuilder(mem, arrowSchema)
	defer b.Release()

	ids := b.Field(0).(*array.Int64Builder)
	names := b.Field(1).(*array.StringBuilder)
	ratings := b.Field(2).(*array.Float32Builder)
	dates := b.Field(3).(*array.Date32Builder)

	b.Reserve(len(movies))
	for _, m := range movies {
		if m.ID != nil {
			ids.Append(*m.ID)
		} else {
			ids.AppendNull()
		}
		names.Append(m.Name)
		ratings.Append(m.Rating)
		dates.Append(arrow.Date32FromTime(m.ReleaseDate))
	}
	return b.NewRecord()
}

// stringArray covers both String and LargeString scan output
type stringArray interface {
	arrow.Array
	Value(int) string
}

// appendRecord converts one scanned batch, locating columns by name
func appendRecord(dst []models.Movie, rec arrow.Record) ([]models.Movie, error) {
	sc := rec.Schema()
	col := func(name string) (arrow.Array, error) {
		idx := sc.FieldIndices(name)
		if len(idx) != 1 {
			return nil, fmt.Errorf("column %q missing from scan", name)
		}
		return rec.Column(idx[0]), nil
	}

	idCol, err := col(models.FieldID)
	if err != nil {
		return dst, err
	}
	nameCol, err := col(models.FieldName)
	if err != nil {
		return dst, err
	}
	ratingCol, err := col(models.FieldRating)
	if err != nil {
		return dst, err
	}
	dateCol, err := col(models.FieldReleaseDate)
	if err != nil {
		return dst, err
	}

	ids, ok := idCol.(*array.Int64)
	if !ok {
		return dst, fmt.Errorf("column %q has type %s", models.FieldID, idCol.DataType())
	}
	names, ok := nameCol.(stringArray)
	if !ok {
		return dst, fmt.Errorf("column %q has type %s", models.FieldName, nameCol.DataType())
	}
	ratings, ok := ratingCol.(*array.Float32)
	if !ok {
		return dst, fmt.Errorf("column %q has type %s", models.FieldRating, ratingCol.DataType())
	}
	dates, ok := dateCol.(*array.Date32)
	if !ok {
		return dst, fmt.Errorf("column %q has type %s", models.FieldReleaseDate, dateCol.DataType())
	}

	for i := 0; i < int(rec.NumRows()); i++ {
		if names.IsNull(i) || ratings.IsNull(i) || dates.IsNull(i) {
			return dst, fmt.Errorf("row %d: required field is null", len(dst))
		}

		var m models.Movie
		if ids.IsValid(i) {
			m.ID = models.Int64(ids.Value(i))
		}
		m.Name = names.Value(i)
		m.Rating = ratings.Value(i)
		if r := float64(m.Rating); math.IsNaN(r) || math.IsInf(r, 0) {
			return dst, fmt.Errorf("row %d: rating is not finite", len(dst))
		}
		m.ReleaseDate = dates.Value(i).ToTime().In(time.UTC)

		dst = append(dst, m)
	}
	return dst, nil
}
