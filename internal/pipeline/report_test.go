package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/movieport/pkg/config"
	"github.com/ajitpratap0/movieport/pkg/dataset"
	"github.com/ajitpratap0/movieport/pkg/errors"
)

func TestReport_WriteAndRead(t *testing.T) {
	r := &Report{
		RunID:     "run-1",
		StartedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  3 * time.Second,
		Stages: []StageResult{
			{Name: StageReset, In: 48, Out: 48, Duration: time.Millisecond},
			{Name: StageSeedBucket, In: 50, Out: 0, Duration: time.Millisecond, Error: "storage: boom"},
		},
		Error: "storage: boom",
	}

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"run_id": "run-1"`)
	assert.Contains(t, string(raw), `"duration_ns": 3000000000`)

	got, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	s, ok := got.Stage(StageSeedBucket)
	require.True(t, ok)
	assert.True(t, got.Failed())
	assert.Equal(t, 50, s.In)
}

func TestCheckCount(t *testing.T) {
	assert.NoError(t, checkCount("x", 3, 3))

	err := checkCount("relational_to_table", 98, 97)
	require.Error(t, err)
	assert.True(t, errors.IsCountMismatch(err))
	assert.Contains(t, err.Error(), "read 98 records but wrote 97")
}

func TestNewConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.WorkDir = "/var/lib/movieport"
	cfg.Pipeline.TextExport = "/tmp/export.csv"

	pc, err := NewConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/movieport/movies.parquet", pc.RelationalParquet)
	assert.Equal(t, "/var/lib/movieport/extra_movies.parquet", pc.SeedParquet)
	assert.Equal(t, "/tmp/export.csv", pc.TextExport)
	assert.Equal(t, dataset.ExtraMoviesCSV, pc.Seed)
	assert.Equal(t, cfg.ObjectStore.MoviesBucket, pc.MoviesBucket)
	assert.Equal(t, 48, pc.BaselineCount)
}

func TestNewConfig_SeedFile(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(seed, []byte("id,name,rating,releaseDate\n,Heat,8.3,1995-12-15\n"), 0o600))

	cfg := config.Default()
	cfg.Pipeline.SeedFile = seed
	pc, err := NewConfig(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(pc.Seed), "Heat")

	cfg.Pipeline.SeedFile = filepath.Join(t.TempDir(), "absent.csv")
	_, err = NewConfig(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
