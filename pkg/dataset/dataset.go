// Package dataset embeds the reference data used to make pipeline runs deterministic:
// the 48-row baseline loaded into the relational store and the 50-row comedy
// file seeded into the interchange bucket.
package dataset

import (
	"bytes"
	_ "embed"

	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/pkg/formats/delimited"
	"github.com/ajitpratap0/movieport/pkg/models"
)

const (
	// BaselineCount is the size of the baseline dataset
	BaselineCount = 48
	// ExtraMoviesCount is the number of data rows in the seed text file
	ExtraMoviesCount = 50
	// ExtraMoviesKey is the object key of the seed text file
	ExtraMoviesKey = "extra_movies.csv"
)

//go:embed baseline_movies.csv
var BaselineCSV []byte

//go:embed extra_movies.csv
var ExtraMoviesCSV []byte

// Baseline decodes the baseline dataset. Every record carries ids 1..48.
func Baseline() ([]models.Movie, error) {
	return delimited.NewCodec(zap.NewNop()).Decode(bytes.NewReader(BaselineCSV))
}

// ExtraMovies decodes the seed text file. No record carries an id.
func ExtraMovies() ([]models.Movie, error) {
	return delimited.NewCodec(zap.NewNop()).Decode(bytes.NewReader(ExtraMoviesCSV))
}
