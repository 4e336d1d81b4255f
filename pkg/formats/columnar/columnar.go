// Package columnar implements the columnar file codec: a single Parquet file
// holding movies with dictionary encoding and gzip compression.
//
// On-disk schema, in order:
//
//	id           INT64       optional
//	name         BYTE_ARRAY  required (UTF8)
//	rating       FLOAT       required
//	releaseDate  BYTE_ARRAY  required (UTF8, YYYY-MM-DD)
package columnar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	merrors "github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/logger"
	"github.com/ajitpratap0/movieport/pkg/models"
)

// FileExtension is the conventional suffix of files produced by this codec
const FileExtension = ".parquet"

// Config configures the codec
type Config struct {
	Compression compress.Compression
	// Dictionary enables dictionary encoding for every column
	Dictionary bool
	// BatchSize is the number of rows decoded per Arrow record on read
	BatchSize int64
}

// DefaultConfig returns gzip compression with dictionary encoding
func DefaultConfig() Config {
	return Config{
		Compression: compress.Codecs.Gzip,
		Dictionary:  true,
		BatchSize:   1024,
	}
}

// Option customizes a Codec
type Option func(*Codec)

// WithCompression overrides the compression codec
func WithCompression(c compress.Compression) Option {
	return func(cc *Codec) { cc.config.Compression = c }
}

// WithAllocator overrides the Arrow allocator
func WithAllocator(mem memory.Allocator) Option {
	return func(cc *Codec) { cc.mem = mem }
}

// Codec writes and reads movie Parquet files
type Codec struct {
	config Config
	mem    memory.Allocator
	logger *zap.Logger
}

// NewCodec creates a columnar codec. A nil logger falls back to the global logger.
func NewCodec(l *zap.Logger, opts ...Option) *Codec {
	if l == nil {
		l = logger.Named("columnar")
	}
	c := &Codec{
		config: DefaultConfig(),
		mem:    memory.NewGoAllocator(),
		logger: l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseCompression maps a configuration name to a Parquet codec
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gzip":
		return compress.Codecs.Gzip, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "lz4", "lz4_raw":
		return compress.Codecs.Lz4Raw, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, merrors.Newf(merrors.ErrorTypeConfig, "unsupported parquet compression: %s", name)
	}
}

// Write replaces the file at path with movies and returns the number of rows written.
// The file is built in a temporary sibling and renamed over path only after the
// footer has been written, so a failed call never leaves a partial file at path.
func (c *Codec) Write(path string, movies []models.Movie) (count int, err error) {
	if err := models.ValidateAll(movies); err != nil {
		return 0, err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return 0, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to create parquet file").WithDetail("path", path)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	// CreateTemp makes the file private; the replaced file is readable like os.Create's
	if err = tmp.Chmod(0o644); err != nil {
		return 0, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to set parquet file mode").WithDetail("path", path)
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(c.config.Compression),
		parquet.WithDictionaryDefault(c.config.Dictionary),
		parquet.WithCreatedBy("movieport"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(c.mem))

	fw, err := pqarrow.NewFileWriter(arrowSchema, tmp, props, arrowProps)
	if err != nil {
		return 0, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to create parquet writer").WithDetail("path", path)
	}

	if len(movies) > 0 {
		rec := buildRecord(c.mem, movies)
		werr := fw.Write(rec)
		rec.Release()
		if werr != nil {
			_ = fw.Close()
			return 0, merrors.Wrap(werr, merrors.ErrorTypeFile, "failed to write parquet rows").WithDetail("path", path)
		}
	}

	// closing the writer writes the footer and closes the temporary file
	if err = fw.Close(); err != nil {
		return 0, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to finish parquet file").WithDetail("path", path)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return 0, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to replace parquet file").WithDetail("path", path)
	}

	c.logger.Info("wrote parquet file",
		zap.String("path", path),
		zap.Int("records", len(movies)),
		zap.String("compression", c.config.Compression.String()))
	return len(movies), nil
}

// Read returns every movie in the file in storage order
func (c *Codec) Read(path string) ([]models.Movie, error) {
	rdr, err := c.open(path)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: c.config.BatchSize}, c.mem)
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to create arrow reader").WithDetail("path", path)
	}

	schema, err := fr.Schema()
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeSchema, "failed to derive arrow schema").WithDetail("path", path)
	}
	cols, err := resolveColumns(schema)
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeSchema, "incompatible parquet schema").WithDetail("path", path)
	}

	rr, err := fr.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to open record reader").WithDetail("path", path)
	}
	defer rr.Release()

	movies := make([]models.Movie, 0, rdr.NumRows())
	for rr.Next() {
		movies, err = appendRecord(movies, rr.Record(), cols)
		if err != nil {
			return nil, merrors.Wrap(err, merrors.ErrorTypeSchema, "invalid parquet row").WithDetail("path", path)
		}
	}
	if err := rr.Err(); err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to read parquet rows").WithDetail("path", path)
	}

	c.logger.Debug("read parquet file", zap.String("path", path), zap.Int("records", len(movies)))
	return movies, nil
}

func (c *Codec) open(path string) (*file.Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, merrors.Wrap(err, merrors.ErrorTypeNotFound, "parquet file not found").WithDetail("path", path)
		}
		return nil, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to stat parquet file").WithDetail("path", path)
	}

	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to open parquet file").WithDetail("path", path)
	}
	return rdr, nil
}
