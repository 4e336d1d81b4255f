package pipeline

import (
	"context"
	"strings"

	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/models"
)

// Endpoint names one side of an ad-hoc export
type Endpoint string

// Export endpoints
const (
	EndpointRelational Endpoint = "postgres"
	EndpointColumnar   Endpoint = "parquet"
	EndpointTable      Endpoint = "iceberg"
	EndpointText       Endpoint = "csv"
)

// Endpoints lists every export endpoint
var Endpoints = []Endpoint{EndpointRelational, EndpointColumnar, EndpointTable, EndpointText}

// ParseEndpoint accepts an endpoint name, case-insensitively
func ParseEndpoint(name string) (Endpoint, error) {
	e := Endpoint(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Endpoints {
		if e == known {
			return e, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unknown endpoint %q", name)
}

type source interface {
	read(ctx context.Context) ([]models.Movie, error)
}

type sink interface {
	write(ctx context.Context, movies []models.Movie) (int, error)
}

// endpoint is a location that can be both read and written
type endpoint interface {
	source
	sink
}

func (o *Orchestrator) endpoint(e Endpoint) (endpoint, error) {
	switch e {
	case EndpointRelational:
		return o.relational(), nil
	case EndpointColumnar:
		return o.columnarFile(o.config.RelationalParquet), nil
	case EndpointTable:
		return o.versionedTable(), nil
	case EndpointText:
		return o.textFile(o.config.TextExport), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unknown endpoint %q", string(e))
}

type relationalEndpoint struct{ store RelationalStore }

func (o *Orchestrator) relational() relationalEndpoint { return relationalEndpoint{o.store} }

func (e relationalEndpoint) read(ctx context.Context) ([]models.Movie, error) {
	return e.store.ReadAll(ctx)
}

func (e relationalEndpoint) write(ctx context.Context, movies []models.Movie) (int, error) {
	return e.store.WriteAll(ctx, movies)
}

// replaceRelational clears the store before inserting
type replaceRelational struct{ store RelationalStore }

func (e replaceRelational) write(ctx context.Context, movies []models.Movie) (int, error) {
	if _, err := e.store.ClearAll(ctx); err != nil {
		return 0, err
	}
	return e.store.WriteAll(ctx, movies)
}

type columnarEndpoint struct {
	o    *Orchestrator
	path string
}

func (o *Orchestrator) columnarFile(path string) columnarEndpoint {
	return columnarEndpoint{o: o, path: path}
}

func (e columnarEndpoint) read(context.Context) ([]models.Movie, error) {
	return e.o.columnar.Read(e.path)
}

func (e columnarEndpoint) write(_ context.Context, movies []models.Movie) (int, error) {
	return e.o.columnar.Write(e.path, movies)
}

type textEndpoint struct {
	o    *Orchestrator
	path string
}

func (o *Orchestrator) textFile(path string) textEndpoint {
	return textEndpoint{o: o, path: path}
}

func (e textEndpoint) read(context.Context) ([]models.Movie, error) {
	return e.o.text.ReadFile(e.path)
}

func (e textEndpoint) write(_ context.Context, movies []models.Movie) (int, error) {
	return e.o.text.WriteFile(e.path, movies)
}

// bucketTextEndpoint reads the seed text file back from the movies bucket
type bucketTextEndpoint struct{ o *Orchestrator }

func (o *Orchestrator) bucketText() bucketTextEndpoint { return bucketTextEndpoint{o} }

func (e bucketTextEndpoint) read(ctx context.Context) ([]models.Movie, error) {
	body, err := e.o.buckets.Download(ctx, e.o.config.MoviesBucket, e.o.config.SeedKey)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return e.o.text.Decode(body)
}

type tableEndpoint struct{ table TableStore }

func (o *Orchestrator) versionedTable() tableEndpoint { return tableEndpoint{o.table} }

func (e tableEndpoint) read(ctx context.Context) ([]models.Movie, error) {
	return e.table.Read(ctx)
}

func (e tableEndpoint) write(ctx context.Context, movies []models.Movie) (int, error) {
	return e.table.Write(ctx, movies)
}
