package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/internal/pipeline"
	"github.com/ajitpratap0/movieport/pkg/formats/columnar"
	"github.com/ajitpratap0/movieport/pkg/formats/delimited"
	"github.com/ajitpratap0/movieport/pkg/iceberg"
	"github.com/ajitpratap0/movieport/pkg/logger"
	"github.com/ajitpratap0/movieport/pkg/metrics"
	"github.com/ajitpratap0/movieport/pkg/objectstore"
	"github.com/ajitpratap0/movieport/pkg/observability"
	"github.com/ajitpratap0/movieport/pkg/store/postgres"
)

// app holds the connections of one command invocation
type app struct {
	pool    *pgxpool.Pool
	table   *iceberg.Codec
	orch    *pipeline.Orchestrator
	tracing *observability.Provider
	cancel  context.CancelFunc
	log     *zap.Logger
}

func newApp(ctx context.Context, flags *globalFlags) (_ *app, err error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, err
	}
	log := logger.Named("movieport")
	log.Debug("loaded configuration", zap.Any("config", cfg.Redacted()))

	a := &app{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.tracing, err = observability.Init(observability.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		PrettyPrint:    cfg.Tracing.PrettyPrint,
	})
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	if cfg.Metrics.Enabled {
		var metricsCtx context.Context
		metricsCtx, a.cancel = context.WithCancel(ctx)
		go func() {
			if err := collector.Serve(metricsCtx, cfg.Metrics.Addr, log); err != nil {
				log.Error("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	a.pool, err = postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	store := postgres.NewStore(a.pool, log.Named("postgres"), postgres.WithTable(cfg.Database.Table))

	client, err := objectstore.NewClient(ctx, cfg.ObjectStore.Config)
	if err != nil {
		return nil, err
	}
	buckets := objectstore.NewBucketManager(client, cfg.ObjectStore.Config, log.Named("objectstore"))

	info, err := store.ConnInfo(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("connected to relational store",
		zap.String("user", info.User),
		zap.String("database", info.Database),
		zap.String("host", info.Host),
		zap.Int32("port", info.Port))

	var tableOpts []iceberg.Option
	if cfg.SharesDatabase() {
		// the catalog tables live next to the movies table
		tableOpts = append(tableOpts, iceberg.WithPool(a.pool))
		log.Info("iceberg catalog shares the relational database",
			zap.String("catalog", cfg.Catalog.Name),
			zap.String("database", info.Database))
	}
	a.table, err = iceberg.Open(cfg.Iceberg(), log.Named("iceberg"), tableOpts...)
	if err != nil {
		return nil, err
	}

	compression, err := columnar.ParseCompression(cfg.Pipeline.ParquetCompression)
	if err != nil {
		return nil, err
	}

	pcfg, err := pipeline.NewConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.orch, err = pipeline.New(pcfg, pipeline.Deps{
		Store:    store,
		Buckets:  buckets,
		Table:    a.table,
		Columnar: columnar.NewCodec(log.Named("columnar"), columnar.WithCompression(compression)),
		Text:     delimited.NewCodec(log.Named("delimited")),
		Metrics:  collector,
		Tracer:   a.tracing.Tracer(),
		Logger:   log.Named("pipeline"),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases everything newApp acquired, in reverse order
func (a *app) Close() {
	if a.table != nil {
		if err := a.table.Close(); err != nil {
			a.log.Warn("failed to close table catalog", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.tracing.Shutdown(context.Background()); err != nil {
		a.log.Warn("failed to shutdown tracing", zap.Error(err))
	}
}
