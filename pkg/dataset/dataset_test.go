package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseline(t *testing.T) {
	movies, err := Baseline()
	require.NoError(t, err)
	require.Len(t, movies, BaselineCount)

	for i, m := range movies {
		require.NotNil(t, m.ID)
		assert.Equal(t, int64(i+1), *m.ID)
		assert.NoError(t, m.Validate())
	}
}

func TestExtraMovies(t *testing.T) {
	assert.Equal(t, ExtraMoviesCount+1, bytes.Count(ExtraMoviesCSV, []byte("\n")))

	movies, err := ExtraMovies()
	require.NoError(t, err)
	require.Len(t, movies, ExtraMoviesCount)

	for _, m := range movies {
		assert.Nil(t, m.ID)
		assert.NoError(t, m.Validate())
	}
}
