// Package pipeline sequences the movie conversions end to end.
//
// A run moves one batch of movies through every codec in a fixed order:
//
//	reset         relational store back to the baseline dataset
//	seed_bucket   both buckets recreated empty, table dropped, seed text file uploaded
//	relational_to_columnar
//	bucket_text_to_columnar
//	columnar_to_relational
//	relational_to_text
//	relational_to_table
//	table_to_relational   ids cleared, store cleared, rows inserted fresh
//
// Every stage reads the whole batch, writes it and compares the written count
// with the read count. A difference fails the run with a count mismatch error.
// Stages run one at a time and nothing is retried.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/formats/columnar"
	"github.com/ajitpratap0/movieport/pkg/formats/delimited"
	"github.com/ajitpratap0/movieport/pkg/logger"
	"github.com/ajitpratap0/movieport/pkg/metrics"
	"github.com/ajitpratap0/movieport/pkg/models"
	"github.com/ajitpratap0/movieport/pkg/observability"
)

// RelationalStore is the relational side of the pipeline
type RelationalStore interface {
	EnsureSchema(ctx context.Context) error
	ReadAll(ctx context.Context) ([]models.Movie, error)
	WriteAll(ctx context.Context, movies []models.Movie) (int, error)
	ResetToDefault(ctx context.Context, defaultCount int) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// BucketStore holds the interchange text file and the table warehouse
type BucketStore interface {
	EnsureCleanBucket(ctx context.Context, name string) error
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	ListKeys(ctx context.Context, bucket string) ([]string, error)
}

// TableStore is the versioned table
type TableStore interface {
	Write(ctx context.Context, movies []models.Movie) (int, error)
	Read(ctx context.Context) ([]models.Movie, error)
	Reset(ctx context.Context) error
}

// Deps are the components a run drives. Store, Buckets and Table are required.
type Deps struct {
	Store    RelationalStore
	Buckets  BucketStore
	Table    TableStore
	Columnar *columnar.Codec
	Text     *delimited.Codec
	// Metrics and Tracer are optional
	Metrics *metrics.Collector
	Tracer  trace.Tracer
	Logger  *zap.Logger
}

// Orchestrator runs the pipeline stages
type Orchestrator struct {
	config   Config
	store    RelationalStore
	buckets  BucketStore
	table    TableStore
	columnar *columnar.Codec
	text     *delimited.Codec
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *zap.Logger
}

// New validates cfg and wires the orchestrator
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Buckets == nil || deps.Table == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "relational store, bucket store and table store are required")
	}

	l := deps.Logger
	if l == nil {
		l = logger.Named("pipeline")
	}
	o := &Orchestrator{
		config:   cfg,
		store:    deps.Store,
		buckets:  deps.Buckets,
		table:    deps.Table,
		columnar: deps.Columnar,
		text:     deps.Text,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		logger:   l,
	}
	if o.columnar == nil {
		o.columnar = columnar.NewCodec(l.Named("columnar"))
	}
	if o.text == nil {
		o.text = delimited.NewCodec(l.Named("delimited"))
	}
	return o, nil
}

// run carries the state of one invocation
type run struct {
	id     string
	report *Report
	timer  *metrics.Timer
	logger *zap.Logger
}

func (o *Orchestrator) newRun(ctx context.Context) (context.Context, *run) {
	id := uuid.NewString()
	ctx = logger.WithRunID(ctx, id)
	return ctx, &run{
		id:     id,
		report: &Report{RunID: id, StartedAt: time.Now().UTC()},
		timer:  metrics.NewTimer(),
		logger: logger.FromContext(ctx, o.logger),
	}
}

func (o *Orchestrator) finish(r *run, err error) (*Report, error) {
	r.report.Duration = r.timer.Stop()
	if err != nil {
		r.report.Error = err.Error()
		r.logger.Error("pipeline failed", zap.Error(err), zap.Duration("duration", r.report.Duration))
	} else {
		r.logger.Info("pipeline completed",
			zap.Int("stages", len(r.report.Stages)),
			zap.Duration("duration", r.report.Duration))
	}
	o.metrics.RecordRun(r.report.Duration, err)
	return r.report, err
}

// Run executes every stage in order and stops at the first failure.
// The report covers the stages that ran, including the failed one.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	ctx, r := o.newRun(ctx)
	r.logger.Info("starting pipeline",
		zap.Int("baseline", o.config.BaselineCount),
		zap.String("movies_bucket", o.config.MoviesBucket),
		zap.String("warehouse_bucket", o.config.WarehouseBucket))

	steps := []func(context.Context, *run) error{
		o.resetBaseline,
		o.seedBucket,
		func(ctx context.Context, r *run) error {
			return o.transfer(ctx, r, StageRelationalToColumnar, o.relational(), o.columnarFile(o.config.RelationalParquet), nil)
		},
		func(ctx context.Context, r *run) error {
			return o.transfer(ctx, r, StageBucketTextToColumnar, o.bucketText(), o.columnarFile(o.config.SeedParquet), nil)
		},
		func(ctx context.Context, r *run) error {
			return o.transfer(ctx, r, StageColumnarToRelational, o.columnarFile(o.config.SeedParquet), o.relational(), nil)
		},
		func(ctx context.Context, r *run) error {
			return o.transfer(ctx, r, StageRelationalToText, o.relational(), o.textFile(o.config.TextExport), nil)
		},
		func(ctx context.Context, r *run) error {
			return o.transfer(ctx, r, StageRelationalToTable, o.relational(), o.versionedTable(), nil)
		},
		o.reloadFromTable,
	}

	for _, step := range steps {
		if err := step(ctx, r); err != nil {
			return o.finish(r, err)
		}
	}
	return o.finish(r, nil)
}

// Reset restores the relational baseline and recreates both buckets empty
// without moving any data
func (o *Orchestrator) Reset(ctx context.Context) (*Report, error) {
	ctx, r := o.newRun(ctx)
	if err := o.resetBaseline(ctx, r); err != nil {
		return o.finish(r, err)
	}
	err := o.stage(ctx, r, StageCleanBuckets, func(ctx context.Context) (int, int, error) {
		if err := o.cleanStorage(ctx); err != nil {
			return 0, 0, err
		}
		return 0, 0, nil
	})
	return o.finish(r, err)
}

// Export runs a single conversion between two endpoints
func (o *Orchestrator) Export(ctx context.Context, from, to Endpoint) (*Report, error) {
	ctx, r := o.newRun(ctx)
	if from == to {
		return o.finish(r, errors.Newf(errors.ErrorTypeConfig, "export source and target are both %s", from))
	}
	src, err := o.endpoint(from)
	if err != nil {
		return o.finish(r, err)
	}
	// loading from the table replaces the relational contents
	if from == EndpointTable && to == EndpointRelational {
		return o.finish(r, o.reloadFromTable(ctx, r))
	}
	dst, err := o.endpoint(to)
	if err != nil {
		return o.finish(r, err)
	}
	return o.finish(r, o.transfer(ctx, r, string(from)+"_to_"+string(to), src, dst, nil))
}

// stage runs fn as a named, timed, traced stage and appends it to the report
func (o *Orchestrator) stage(ctx context.Context, r *run, name string, fn func(context.Context) (in, out int, err error)) error {
	ctx = logger.WithStage(ctx, name)
	ctx, span := observability.StartStage(ctx, o.tracer, r.id, name)
	l := observability.WithSpan(ctx, logger.FromContext(ctx, o.logger))
	l.Debug("stage started")

	in, out, err := fn(ctx)
	span.SetRecords(in, out)
	elapsed := span.End(err)

	o.metrics.RecordStage(name, in, out, elapsed, err)
	result := StageResult{Name: name, In: in, Out: out, Duration: elapsed}
	if err != nil {
		result.Error = err.Error()
	}
	r.report.Stages = append(r.report.Stages, result)

	if err != nil {
		l.Error("stage failed", zap.Error(err), zap.Int("in", in), zap.Int("out", out))
		return err
	}
	l.Info("stage completed", zap.Int("in", in), zap.Int("out", out), zap.Duration("duration", elapsed))
	return nil
}

// transfer reads the whole batch from src, applies transform and writes it to dst.
// The written count must equal the read count.
func (o *Orchestrator) transfer(ctx context.Context, r *run, name string, src source, dst sink, transform Transform) error {
	return o.stage(ctx, r, name, func(ctx context.Context) (int, int, error) {
		movies, err := src.read(ctx)
		if err != nil {
			return 0, 0, err
		}
		observability.AddEvent(ctx, "records read", attribute.Int(observability.AttrRecordsIn, len(movies)))
		if transform != nil {
			movies = transform(movies)
		}
		out, err := dst.write(ctx, movies)
		if err != nil {
			return len(movies), out, err
		}
		observability.AddEvent(ctx, "records written", attribute.Int(observability.AttrRecordsOut, out))
		return len(movies), out, checkCount(name, len(movies), out)
	})
}

// Transform rewrites a batch between read and write
type Transform func([]models.Movie) []models.Movie

// ResetIDs discards every id so the relational store assigns fresh ones
func ResetIDs(movies []models.Movie) []models.Movie {
	return models.ClearIDs(movies)
}

func checkCount(stage string, want, got int) error {
	if want == got {
		return nil
	}
	return errors.Newf(errors.ErrorTypeCountMismatch, "%s: read %d records but wrote %d", stage, want, got).
		WithDetail("stage", stage).
		WithDetail("in", want).
		WithDetail("out", got)
}
