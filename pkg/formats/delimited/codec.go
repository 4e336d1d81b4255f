// Package delimited implements the comma-separated interchange format:
// a header row "id,name,rating,releaseDate" followed by one row per movie,
// with a blank id meaning "no id yet".
package delimited

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/pkg/compression"
	merrors "github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/logger"
	"github.com/ajitpratap0/movieport/pkg/models"
)

// ContentType is the MIME type used when the text file is stored in a bucket
const ContentType = "text/csv"

// Header is the literal first row of every encoded file
var Header = models.MovieSchema.Names()

// Codec encodes and decodes movies as delimited text
type Codec struct {
	logger *zap.Logger
}

// NewCodec creates a text codec. A nil logger falls back to the global logger.
func NewCodec(l *zap.Logger) *Codec {
	if l == nil {
		l = logger.Named("delimited")
	}
	return &Codec{logger: l}
}

// Decode reads every row after the header. Any malformed field fails the whole
// decode with a parse error and no records are returned.
func (c *Codec) Decode(r io.Reader) ([]models.Movie, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = models.MovieSchema.Len()
	reader.ReuseRecord = true

	// the header row is discarded
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Movie{}, nil
		}
		return nil, parseError(err, 1, "", "failed to read header")
	}

	movies := make([]models.Movie, 0, 64)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			return nil, parseError(err, line, "", "failed to read row")
		}

		line, _ := reader.FieldPos(0)
		movie, err := decodeRow(row, line)
		if err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}

	c.logger.Debug("decoded delimited text", zap.Int("records", len(movies)))
	return movies, nil
}

// Encode writes the header and one row per movie, flushes, and returns the number of rows written.
func (c *Codec) Encode(w io.Writer, movies []models.Movie) (int, error) {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return 0, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to write header")
	}

	count := 0
	row := make([]string, len(Header))
	for i := range movies {
		if err := movies[i].Validate(); err != nil {
			return count, merrors.Wrap(err, merrors.ErrorTypeValidation, "refusing to encode invalid record").
				WithDetail("index", i)
		}
		encodeRow(row, movies[i])
		if err := writer.Write(row); err != nil {
			return count, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to write row").WithDetail("index", i)
		}
		count++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return count, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to flush rows")
	}

	c.logger.Debug("encoded delimited text", zap.Int("records", count))
	return count, nil
}

// ReadFile decodes a local file, decompressing according to its extension
func (c *Codec) ReadFile(path string) ([]models.Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, merrors.Wrap(err, merrors.ErrorTypeNotFound, "text file not found").WithDetail("path", path)
		}
		return nil, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to open text file").WithDetail("path", path)
	}
	defer f.Close()

	r, err := compression.NewReader(f, compression.FromPath(path))
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to open decompressor").WithDetail("path", path)
	}
	defer r.Close()

	return c.Decode(r)
}

// WriteFile encodes movies into a local file, truncating it, compressing according to its extension
func (c *Codec) WriteFile(path string, movies []models.Movie) (count int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to create text file").WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = merrors.Wrap(cerr, merrors.ErrorTypeFile, "failed to close text file").WithDetail("path", path)
		}
	}()

	w, err := compression.NewWriter(f, compression.FromPath(path), compression.Default)
	if err != nil {
		return 0, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to open compressor").WithDetail("path", path)
	}

	count, err = c.Encode(w, movies)
	if err != nil {
		_ = w.Close()
		return count, err
	}
	if err := w.Close(); err != nil {
		return count, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to finish compressed stream").WithDetail("path", path)
	}

	c.logger.Info("wrote text file", zap.String("path", path), zap.Int("records", count))
	return count, nil
}

func decodeRow(row []string, line int) (models.Movie, error) {
	var m models.Movie

	if raw := strings.TrimSpace(row[0]); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return m, parseError(err, line, models.FieldID, "malformed id")
		}
		m.ID = models.Int64(id)
	}

	m.Name = row[1]

	rating, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 32)
	if err != nil {
		return m, parseError(err, line, models.FieldRating, "malformed rating")
	}
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return m, parseError(fmt.Errorf("non-finite value %q", row[2]), line, models.FieldRating, "malformed rating")
	}
	m.Rating = float32(rating)

	date, err := models.ParseDate(strings.TrimSpace(row[3]))
	if err != nil {
		return m, parseError(err, line, models.FieldReleaseDate, "malformed release date")
	}
	m.ReleaseDate = date

	return m, nil
}

func encodeRow(row []string, m models.Movie) {
	row[0] = ""
	if m.ID != nil {
		row[0] = strconv.FormatInt(*m.ID, 10)
	}
	row[1] = m.Name
	row[2] = strconv.FormatFloat(float64(m.Rating), 'f', -1, 32)
	row[3] = models.FormatDate(m.ReleaseDate)
}

func parseError(err error, line int, field, msg string) error {
	e := merrors.Wrap(err, merrors.ErrorTypeParse, fmt.Sprintf("line %d: %s", line, msg)).
		WithDetail("line", line)
	if field != "" {
		e = e.WithDetail("field", field)
	}
	return e
}
