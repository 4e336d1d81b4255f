package iceberg_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/movieport/pkg/dataset"
	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/iceberg"
	"github.com/ajitpratap0/movieport/pkg/models"
)

// newLocalCodec builds a codec backed by a SQLite catalog and a local warehouse
func newLocalCodec(t *testing.T) *iceberg.Codec {
	t.Helper()
	codec, _ := openLocalCodec(t)
	return codec
}

// openLocalCodec also returns the warehouse directory
func openLocalCodec(t *testing.T) (*iceberg.Codec, string) {
	t.Helper()
	dir := t.TempDir()
	warehouse := filepath.Join(dir, "warehouse")
	require.NoError(t, os.MkdirAll(warehouse, 0o755))

	cfg := iceberg.DefaultConfig()
	cfg.Driver = iceberg.DriverSQLite
	cfg.DSN = filepath.Join(dir, "catalog.db")
	cfg.Warehouse = "file://" + warehouse

	codec, err := iceberg.Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, codec.Close()) })
	return codec, warehouse
}

func sortByID(movies []models.Movie) {
	sort.Slice(movies, func(i, j int) bool { return movies[i].IDValue() < movies[j].IDValue() })
}

func TestCodec_RoundTripBaseline(t *testing.T) {
	ctx := context.Background()
	codec := newLocalCodec(t)

	baseline, err := dataset.Baseline()
	require.NoError(t, err)

	count, err := codec.Write(ctx, baseline)
	require.NoError(t, err)
	assert.Equal(t, 48, count)

	got, err := codec.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got, 48)

	sortByID(got)
	for i := range baseline {
		assert.NotEmpty(t, got[i].Name)
		assert.False(t, got[i].ReleaseDate.IsZero())
		assert.True(t, baseline[i].Equal(got[i]), "record %d: want %+v got %+v", i, baseline[i], got[i])
	}
}

func TestCodec_NullIDsSurvive(t *testing.T) {
	ctx := context.Background()
	codec := newLocalCodec(t)

	extra, err := dataset.ExtraMovies()
	require.NoError(t, err)

	_, err = codec.Write(ctx, extra)
	require.NoError(t, err)

	got, err := codec.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got, 50)
	for _, m := range got {
		assert.Nil(t, m.ID)
	}
}

func TestCodec_WriteEmptyTouchesNothing(t *testing.T) {
	ctx := context.Background()
	codec := newLocalCodec(t)

	count, err := codec.Write(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = codec.Read(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCatalog(err), "table must not have been created: %v", err)
}

func TestCodec_ReadMissingTable(t *testing.T) {
	_, err := newLocalCodec(t).Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCatalog(err))
}

func TestCodec_AppendsCreateSnapshots(t *testing.T) {
	ctx := context.Background()
	codec := newLocalCodec(t)

	baseline, err := dataset.Baseline()
	require.NoError(t, err)

	_, err = codec.Write(ctx, baseline)
	require.NoError(t, err)
	_, err = codec.Write(ctx, baseline[:10])
	require.NoError(t, err)

	got, err := codec.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 58)

	snaps, err := codec.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "append", snaps[0].Operation)
	assert.False(t, snaps[0].Current)
	assert.True(t, snaps[1].Current)
	require.NotNil(t, snaps[1].ParentID)
	assert.Equal(t, snaps[0].ID, *snaps[1].ParentID)

	first, err := codec.ReadSnapshot(ctx, snaps[0].ID)
	require.NoError(t, err)
	assert.Len(t, first, 48)

	_, err = codec.ReadSnapshot(ctx, -42)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCodec_Reset(t *testing.T) {
	ctx := context.Background()
	codec := newLocalCodec(t)

	// nothing to drop yet
	require.NoError(t, codec.Reset(ctx))

	baseline, err := dataset.Baseline()
	require.NoError(t, err)
	_, err = codec.Write(ctx, baseline)
	require.NoError(t, err)

	require.NoError(t, codec.Reset(ctx))
	_, err = codec.Read(ctx)
	require.Error(t, err)

	count, err := codec.Write(ctx, baseline[:3])
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := codec.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCodec_ResetAfterWarehousePurge(t *testing.T) {
	ctx := context.Background()
	codec, warehouse := openLocalCodec(t)

	baseline, err := dataset.Baseline()
	require.NoError(t, err)
	_, err = codec.Write(ctx, baseline)
	require.NoError(t, err)

	// the metadata files are gone but the catalog row is not
	require.NoError(t, os.RemoveAll(warehouse))
	require.NoError(t, os.MkdirAll(warehouse, 0o755))

	require.NoError(t, codec.Reset(ctx))
	require.NoError(t, codec.Reset(ctx))

	count, err := codec.Write(ctx, baseline[:5])
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	got, err := codec.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestCodec_WriteRejectsInvalid(t *testing.T) {
	codec := newLocalCodec(t)

	_, err := codec.Write(context.Background(), []models.Movie{{Rating: 1}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
