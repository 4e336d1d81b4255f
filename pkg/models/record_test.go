package models

import (
	"math"
	"testing"
	"time"

	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovie_Validate(t *testing.T) {
	valid := Movie{Name: "Alien", Rating: 8.5, ReleaseDate: Date(1979, time.May, 25)}

	tests := []struct {
		name    string
		mutate  func(m *Movie)
		wantErr bool
	}{
		{name: "valid", mutate: func(m *Movie) {}},
		{name: "valid with id", mutate: func(m *Movie) { m.ID = Int64(7) }},
		{name: "empty name", mutate: func(m *Movie) { m.Name = "" }, wantErr: true},
		{name: "blank name", mutate: func(m *Movie) { m.Name = "   " }, wantErr: true},
		{name: "NaN rating", mutate: func(m *Movie) { m.Rating = float32(math.NaN()) }, wantErr: true},
		{name: "infinite rating", mutate: func(m *Movie) { m.Rating = float32(math.Inf(1)) }, wantErr: true},
		{name: "missing date", mutate: func(m *Movie) { m.ReleaseDate = time.Time{} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMovie_Equal(t *testing.T) {
	a := Movie{ID: Int64(1), Name: "Heat", Rating: 8.3, ReleaseDate: Date(1995, time.December, 15)}
	b := a
	b.ID = Int64(1)
	assert.True(t, a.Equal(b))

	assert.False(t, a.Equal(a.WithoutID()))

	c := a
	c.ReleaseDate = c.ReleaseDate.Add(24 * time.Hour)
	assert.False(t, a.Equal(c))
}

func TestClearIDs_DoesNotMutateInput(t *testing.T) {
	in := []Movie{
		{ID: Int64(1), Name: "A", Rating: 1, ReleaseDate: Date(2000, 1, 1)},
		{ID: Int64(2), Name: "B", Rating: 2, ReleaseDate: Date(2000, 1, 2)},
	}
	out := ClearIDs(in)

	require.Len(t, out, 2)
	for i := range out {
		assert.Nil(t, out[i].ID)
		assert.NotNil(t, in[i].ID)
		assert.Equal(t, in[i].Name, out[i].Name)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2014-11-07")
	require.NoError(t, err)
	assert.Equal(t, Date(2014, time.November, 7), d)
	assert.Equal(t, "2014-11-07", FormatDate(d))

	for _, bad := range []string{"", "2014-13-01", "2014-02-30", "07/11/2014", "2014-11-07T00:00:00Z"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestMovieSchema(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "rating", "releaseDate"}, MovieSchema.Names())
	assert.Equal(t, []string{"id", "name", "rating", "release_date"}, MovieSchema.Columns())

	id, ok := MovieSchema.Field(FieldID)
	require.True(t, ok)
	assert.True(t, id.Nullable)

	for _, name := range []string{FieldName, FieldRating, FieldReleaseDate} {
		f, ok := MovieSchema.Field(name)
		require.True(t, ok)
		assert.False(t, f.Nullable, name)
	}
	assert.Equal(t, 3, MovieSchema.Index(FieldReleaseDate))
	assert.Equal(t, -1, MovieSchema.Index("director"))
}
