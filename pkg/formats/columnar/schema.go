package columnar

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/movieport/pkg/models"
)

// arrowSchema is the logical schema as written to disk. Only id is nullable.
var arrowSchema = buildArrowSchema()

func buildArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, 0, models.MovieSchema.Len())
	for _, f := range models.MovieSchema.Fields {
		fields = append(fields, arrow.Field{
			Name:     f.Name,
			Type:     arrowType(f.Type),
			Nullable: f.Nullable,
		})
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t models.FieldType) arrow.DataType {
	switch t {
	case models.FieldTypeInt64:
		return arrow.PrimitiveTypes.Int64
	case models.FieldTypeFloat32:
		return arrow.PrimitiveTypes.Float32
	default:
		// dates are stored as ISO strings
		return arrow.BinaryTypes.String
	}
}

// Schema returns the Arrow schema of files written by this codec
func Schema() *arrow.Schema {
	return arrowSchema
}

// columns holds the position of each logical field in a file schema
type columns struct {
	id, name, rating, releaseDate int
}

// resolveColumns matches a file schema against the logical schema by name.
// Extra or missing fields and type differences are rejected.
func resolveColumns(s *arrow.Schema) (columns, error) {
	if s.NumFields() != arrowSchema.NumFields() {
		return columns{}, fmt.Errorf("expected %d fields, found %d (%s)", arrowSchema.NumFields(), s.NumFields(), s)
	}

	idx := make([]int, arrowSchema.NumFields())
	for i, want := range arrowSchema.Fields() {
		found := s.FieldIndices(want.Name)
		if len(found) != 1 {
			return columns{}, fmt.Errorf("field %q not found", want.Name)
		}
		got := s.Field(found[0])
		if !arrow.TypeEqual(got.Type, want.Type) {
			return columns{}, fmt.Errorf("field %q has type %s, expected %s", want.Name, got.Type, want.Type)
		}
		idx[i] = found[0]
	}

	return columns{id: idx[0], name: idx[1], rating: idx[2], releaseDate: idx[3]}, nil
}

func buildRecord(mem memory.Allocator, movies []models.Movie) arrow.Record {
	b := array.NewRecordBuilder(mem, arrowSchema)
	defer b.Release()

	ids := b.Field(0).(*array.Int64Builder)
	names := b.Field(1).(*array.StringBuilder)
	ratings := b.Field(2).(*array.Float32Builder)
	dates := b.Field(3).(*array.StringBuilder)

	b.Reserve(len(movies))
	for _, m := range movies {
		if m.ID != nil {
			ids.Append(*m.ID)
		} else {
			ids.AppendNull()
		}
		names.Append(m.Name)
		ratings.Append(m.Rating)
		dates.Append(models.FormatDate(m.ReleaseDate))
	}

	return b.NewRecord()
}

// appendRecord converts one Arrow batch. Required columns read as null, or
// values that break the record invariants, are schema violations.
func appendRecord(dst []models.Movie, rec arrow.Record, cols columns) ([]models.Movie, error) {
	ids := rec.Column(cols.id).(*array.Int64)
	names := rec.Column(cols.name).(*array.String)
	ratings := rec.Column(cols.rating).(*array.Float32)
	dates := rec.Column(cols.releaseDate).(*array.String)

	for i := 0; i < int(rec.NumRows()); i++ {
		var m models.Movie
		if ids.IsValid(i) {
			m.ID = models.Int64(ids.Value(i))
		}

		if names.IsNull(i) || ratings.IsNull(i) || dates.IsNull(i) {
			return dst, fmt.Errorf("row %d: required field is null", len(dst))
		}
		m.Name = names.Value(i)
		m.Rating = ratings.Value(i)
		if r := float64(m.Rating); math.IsNaN(r) || math.IsInf(r, 0) {
			return dst, fmt.Errorf("row %d: rating is not finite", len(dst))
		}

		date, err := models.ParseDate(dates.Value(i))
		if err != nil {
			return dst, fmt.Errorf("row %d: release date %q: %w", len(dst), dates.Value(i), err)
		}
		m.ReleaseDate = date

		dst = append(dst, m)
	}
	return dst, nil
}
