// Package models defines the movie record moved through the pipeline and the
// logical schema every codec maps its native representation to.
//
// A Movie carries an optional ID owned by the relational store; every other
// codec treats the ID as opaque passthrough data. Batches are plain ordered
// slices: one codec materializes a []Movie and exactly one other codec consumes
// it per pipeline stage.
package models

import (
	"math"
	"strings"
	"time"

	"github.com/ajitpratap0/movieport/pkg/errors"
)

// DateLayout is the ISO-8601 calendar date layout used wherever a format has no native date type.
const DateLayout = "2006-01-02"

// Movie is the single entity moved through the pipeline
type Movie struct {
	// ID is nil until the relational store assigns one
	ID          *int64    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Rating      float32   `json:"rating"`
	ReleaseDate time.Time `json:"releaseDate"`
}

// Int64 returns a pointer to v, for building IDs
func Int64(v int64) *int64 {
	return &v
}

// HasID reports whether the record has been assigned an ID
func (m Movie) HasID() bool {
	return m.ID != nil
}

// IDValue returns the ID or 0 when absent
func (m Movie) IDValue() int64 {
	if m.ID == nil {
		return 0
	}
	return *m.ID
}

// WithoutID returns a copy of m with the ID cleared, so it is re-inserted as new
func (m Movie) WithoutID() Movie {
	m.ID = nil
	return m
}

// Validate checks the write-side invariants: non-empty name, finite rating, a release date.
func (m Movie) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New(errors.ErrorTypeValidation, "name must not be empty").
			WithDetail("id", m.IDValue())
	}
	r := float64(m.Rating)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return errors.Newf(errors.ErrorTypeValidation, "rating must be finite, got %v", m.Rating).
			WithDetail("name", m.Name)
	}
	if m.ReleaseDate.IsZero() {
		return errors.New(errors.ErrorTypeValidation, "release date is required").
			WithDetail("name", m.Name)
	}
	return nil
}

// Equal compares two records field by field, IDs included
func (m Movie) Equal(o Movie) bool {
	if m.HasID() != o.HasID() {
		return false
	}
	if m.HasID() && *m.ID != *o.ID {
		return false
	}
	return m.Name == o.Name &&
		m.Rating == o.Rating &&
		FormatDate(m.ReleaseDate) == FormatDate(o.ReleaseDate)
}

// ParseDate strictly parses an ISO-8601 calendar date into UTC midnight
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Date builds a UTC midnight date
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ValidateAll validates every record, failing on the first violation
func ValidateAll(movies []Movie) error {
	for i := range movies {
		if err := movies[i].Validate(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "invalid record").WithDetail("index", i)
		}
	}
	return nil
}

// ClearIDs returns copies of movies with every ID removed.
// Used when an external source of truth is reloaded into the relational store.
func ClearIDs(movies []Movie) []Movie {
	out := make([]Movie, len(movies))
	for i, m := range movies {
		out[i] = m.WithoutID()
	}
	return out
}
