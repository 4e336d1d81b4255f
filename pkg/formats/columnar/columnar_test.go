package columnar_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/movieport/pkg/dataset"
	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/formats/columnar"
	"github.com/ajitpratap0/movieport/pkg/models"
)

func newCodec(t *testing.T) *columnar.Codec {
	t.Helper()
	return columnar.NewCodec(zaptest.NewLogger(t), columnar.WithAllocator(memory.NewGoAllocator()))
}

func TestWriteRead_RoundTripWithNullIDs(t *testing.T) {
	codec := newCodec(t)
	path := filepath.Join(t.TempDir(), "movies.parquet")

	movies := []models.Movie{
		{ID: models.Int64(7), Name: "Alien", Rating: 8.5, ReleaseDate: models.Date(1979, time.May, 25)},
		{Name: "Heat", Rating: 8.3, ReleaseDate: models.Date(1995, time.December, 15)},
		{ID: models.Int64(-1), Name: "Juno", Rating: 7.4, ReleaseDate: models.Date(2007, time.December, 5)},
	}

	count, err := codec.Write(path, movies)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := codec.Read(path)
	require.NoError(t, err)
	require.Len(t, got, len(movies))
	for i := range movies {
		assert.True(t, movies[i].Equal(got[i]), "record %d: want %+v got %+v", i, movies[i], got[i])
	}
}

func TestWriteRead_BaselineAndSeedCounts(t *testing.T) {
	baseline, err := dataset.Baseline()
	require.NoError(t, err)
	extra, err := dataset.ExtraMovies()
	require.NoError(t, err)

	tests := []struct {
		name   string
		movies []models.Movie
		want   int
	}{
		{name: "baseline", movies: baseline, want: 48},
		{name: "seed file", movies: extra, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := newCodec(t)
			path := filepath.Join(t.TempDir(), "movies.parquet")

			count, err := codec.Write(path, tt.movies)
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)

			got, err := codec.Read(path)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestWrite_Overwrites(t *testing.T) {
	codec := newCodec(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "movies.parquet")

	baseline, err := dataset.Baseline()
	require.NoError(t, err)

	_, err = codec.Write(path, baseline)
	require.NoError(t, err)
	_, err = codec.Write(path, baseline[:5])
	require.NoError(t, err)

	got, err := codec.Read(path)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWrite_FileIsWorldReadable(t *testing.T) {
	codec := newCodec(t)
	path := filepath.Join(t.TempDir(), "movies.parquet")

	baseline, err := dataset.Baseline()
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = codec.Write(path, baseline)
		require.NoError(t, err)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	}
}

func TestWrite_Empty(t *testing.T) {
	codec := newCodec(t)
	path := filepath.Join(t.TempDir(), "empty.parquet")

	count, err := codec.Write(path, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := codec.Read(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWrite_InvalidRecordLeavesExistingFile(t *testing.T) {
	codec := newCodec(t)
	path := filepath.Join(t.TempDir(), "movies.parquet")

	good := []models.Movie{{Name: "Alien", Rating: 8.5, ReleaseDate: models.Date(1979, time.May, 25)}}
	_, err := codec.Write(path, good)
	require.NoError(t, err)

	_, err = codec.Write(path, []models.Movie{{Rating: 1, ReleaseDate: models.Date(2000, 1, 1)}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	got, err := codec.Read(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWrite_UncreatablePath(t *testing.T) {
	codec := newCodec(t)
	path := filepath.Join(t.TempDir(), "missing-dir", "movies.parquet")

	_, err := codec.Write(path, []models.Movie{{Name: "Alien", Rating: 8.5, ReleaseDate: models.Date(1979, time.May, 25)}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestRead_Missing(t *testing.T) {
	codec := newCodec(t)

	_, err := codec.Read(filepath.Join(t.TempDir(), "absent.parquet"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRead_Truncated(t *testing.T) {
	codec := newCodec(t)
	path := filepath.Join(t.TempDir(), "movies.parquet")

	baseline, err := dataset.Baseline()
	require.NoError(t, err)
	_, err = codec.Write(path, baseline)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o600))

	_, err = codec.Read(path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestRead_IncompatibleSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.parquet")

	// releaseDate as a native date instead of a string
	schema := arrow.NewSchema([]arrow.Field{
		{Name: models.FieldID, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: models.FieldName, Type: arrow.BinaryTypes.String},
		{Name: models.FieldRating, Type: arrow.PrimitiveTypes.Float32},
		{Name: models.FieldReleaseDate, Type: arrow.FixedWidthTypes.Date32},
	}, nil)
	writeRaw(t, path, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).Append(1)
		b.Field(1).(*array.StringBuilder).Append("Alien")
		b.Field(2).(*array.Float32Builder).Append(8.5)
		b.Field(3).(*array.Date32Builder).Append(arrow.Date32FromTime(models.Date(1979, time.May, 25)))
	})

	_, err := newCodec(t).Read(path)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err), "want schema error, got %v", err)
}

func TestRead_MissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.parquet")

	schema := arrow.NewSchema([]arrow.Field{
		{Name: models.FieldID, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: models.FieldName, Type: arrow.BinaryTypes.String},
		{Name: "score", Type: arrow.PrimitiveTypes.Float32},
		{Name: models.FieldReleaseDate, Type: arrow.BinaryTypes.String},
	}, nil)
	writeRaw(t, path, schema, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendNull()
		b.Field(1).(*array.StringBuilder).Append("Alien")
		b.Field(2).(*array.Float32Builder).Append(8.5)
		b.Field(3).(*array.StringBuilder).Append("1979-05-25")
	})

	_, err := newCodec(t).Read(path)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

func TestRead_MalformedDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.parquet")

	writeRaw(t, path, columnar.Schema(), func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendNull()
		b.Field(1).(*array.StringBuilder).Append("Alien")
		b.Field(2).(*array.Float32Builder).Append(8.5)
		b.Field(3).(*array.StringBuilder).Append("25 May 1979")
	})

	_, err := newCodec(t).Read(path)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

func TestInspect(t *testing.T) {
	codec := newCodec(t)
	path := filepath.Join(t.TempDir(), "movies.parquet")

	baseline, err := dataset.Baseline()
	require.NoError(t, err)
	_, err = codec.Write(path, baseline)
	require.NoError(t, err)

	info, err := codec.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, int64(48), info.Rows)
	assert.Equal(t, 1, info.RowGroups)
	require.Len(t, info.Columns, 4)

	for i, name := range models.MovieSchema.Names() {
		col := info.Columns[i]
		assert.Equal(t, name, col.Name)
		assert.Equal(t, compress.Codecs.Gzip, col.Codec)
		assert.True(t, col.Dictionary, "column %s should be dictionary encoded", name)
	}
}

func TestWithCompression(t *testing.T) {
	codec := columnar.NewCodec(zaptest.NewLogger(t), columnar.WithCompression(compress.Codecs.Zstd))
	path := filepath.Join(t.TempDir(), "movies.parquet")

	_, err := codec.Write(path, []models.Movie{{Name: "Alien", Rating: 8.5, ReleaseDate: models.Date(1979, time.May, 25)}})
	require.NoError(t, err)

	info, err := codec.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Zstd, info.Columns[0].Codec)
}

func TestParseCompression(t *testing.T) {
	c, err := columnar.ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Gzip, c)

	c, err = columnar.ParseCompression("SNAPPY")
	require.NoError(t, err)
	assert.Equal(t, compress.Codecs.Snappy, c)

	_, err = columnar.ParseCompression("rar")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func writeRaw(t *testing.T, path string, schema *arrow.Schema, fill func(*array.RecordBuilder)) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	fw, err := pqarrow.NewFileWriter(schema, f, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	fill(b)
	rec := b.NewRecord()
	defer rec.Release()

	require.NoError(t, fw.Write(rec))
	require.NoError(t, fw.Close())
}
