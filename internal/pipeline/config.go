package pipeline

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/movieport/pkg/config"
	"github.com/ajitpratap0/movieport/pkg/dataset"
	merrors "github.com/ajitpratap0/movieport/pkg/errors"
)

// Config is the resolved input of one run
type Config struct {
	BaselineCount   int
	MoviesBucket    string
	WarehouseBucket string
	SeedKey         string
	// Seed is the content of the text file uploaded to the movies bucket
	Seed []byte
	// RelationalParquet, SeedParquet and TextExport are local paths
	RelationalParquet string
	SeedParquet       string
	TextExport        string
}

// Validate checks that every stage has its inputs
func (c Config) Validate() error {
	switch {
	case c.BaselineCount <= 0:
		return merrors.New(merrors.ErrorTypeConfig, "baseline count must be positive")
	case c.MoviesBucket == "" || c.WarehouseBucket == "":
		return merrors.New(merrors.ErrorTypeConfig, "both bucket names are required")
	case c.MoviesBucket == c.WarehouseBucket:
		return merrors.New(merrors.ErrorTypeConfig, "movies and warehouse buckets must differ")
	case c.SeedKey == "" || len(c.Seed) == 0:
		return merrors.New(merrors.ErrorTypeConfig, "seed key and content are required")
	case c.RelationalParquet == "" || c.SeedParquet == "" || c.TextExport == "":
		return merrors.New(merrors.ErrorTypeConfig, "local output paths are required")
	case c.RelationalParquet == c.SeedParquet:
		return merrors.New(merrors.ErrorTypeConfig, "the two columnar outputs must differ")
	}
	return nil
}

// NewConfig resolves the pipeline section of cfg: file names are joined to the
// work directory and the seed file is loaded, falling back to the embedded one
func NewConfig(cfg *config.Config) (Config, error) {
	p := cfg.Pipeline
	seed := dataset.ExtraMoviesCSV
	if p.SeedFile != "" {
		data, err := os.ReadFile(p.SeedFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, merrors.Wrap(err, merrors.ErrorTypeNotFound, "seed file not found").WithDetail("path", p.SeedFile)
			}
			return Config{}, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to read seed file").WithDetail("path", p.SeedFile)
		}
		seed = data
	}

	out := Config{
		BaselineCount:     p.BaselineCount,
		MoviesBucket:      cfg.ObjectStore.MoviesBucket,
		WarehouseBucket:   cfg.ObjectStore.WarehouseBucket,
		SeedKey:           p.SeedKey,
		Seed:              seed,
		RelationalParquet: resolve(p.WorkDir, p.RelationalParquet),
		SeedParquet:       resolve(p.WorkDir, p.SeedParquet),
		TextExport:        resolve(p.WorkDir, p.TextExport),
	}
	return out, out.Validate()
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
