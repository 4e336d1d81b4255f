// Package testutil provides shared fixtures for movieport tests
package testutil

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/movieport/pkg/models"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SampleMovies returns n valid movies. Every other movie has no id.
func SampleMovies(n int) []models.Movie {
	movies := make([]models.Movie, n)
	for i := range movies {
		movies[i] = models.Movie{
			Name:        "Movie " + string(rune('A'+i%26)),
			Rating:      float32(i%10) + 0.5,
			ReleaseDate: models.Date(1990+i%30, time.Month(1+i%12), 1+i%28),
		}
		if i%2 == 0 {
			movies[i].ID = models.Int64(int64(i + 1))
		}
	}
	return movies
}

// RequireSameMovies asserts that two batches hold the same records, ignoring order.
// Records are compared on name, rating, release date and id.
func RequireSameMovies(t *testing.T, want, got []models.Movie) {
	t.Helper()
	require.Len(t, got, len(want))

	w := sortedCopy(want)
	g := sortedCopy(got)
	for i := range w {
		assert.True(t, w[i].Equal(g[i]), "record %d: want %+v got %+v", i, w[i], g[i])
	}
}

func sortedCopy(movies []models.Movie) []models.Movie {
	out := append([]models.Movie(nil), movies...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IDValue() != b.IDValue() {
			return a.IDValue() < b.IDValue()
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ReleaseDate.Before(b.ReleaseDate)
	})
	return out
}
