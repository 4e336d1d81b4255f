package main

import (
	"bytes"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/pkg/dataset"
	"github.com/ajitpratap0/movieport/pkg/formats/columnar"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "movieport v"+version)
}

func TestConfig_MasksSecrets(t *testing.T) {
	t.Setenv("MOVIEPORT_OBJECT_STORE_SECRET_KEY", "s3cret")
	out, err := execute(t, "config", "--env-file", filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Contains(t, out, "movies_bucket: movies-bucket")
	assert.NotContains(t, out, "s3cret")
}

func TestInspect(t *testing.T) {
	movies, err := dataset.Baseline()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "movies.parquet")
	_, err = columnar.NewCodec(zap.NewNop()).Write(path, movies)
	require.NoError(t, err)

	out, err := execute(t, "inspect", path)
	require.NoError(t, err)

	var info columnar.FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, int64(dataset.BaselineCount), info.Rows)
	assert.Len(t, info.Columns, 4)
}

func TestExport_RejectsUnknownEndpoint(t *testing.T) {
	_, err := execute(t, "export", "--from", "mongo", "--to", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown endpoint")

	_, err = execute(t, "export", "--from", "postgres")
	require.Error(t, err)
}
