// Package config holds the single configuration value for a pipeline run.
//
// The configuration is organized into sections:
//   - Database: the relational store connection
//   - ObjectStore: the S3-compatible endpoint and the two bucket names
//   - Catalog: where table metadata lives and how the table is named
//   - Pipeline: baseline size, local file paths, columnar compression
//   - Logging, Metrics, Tracing: ambient concerns
//
// Values come from Default, then an optional YAML file, then environment
// variables prefixed MOVIEPORT_ (see Load). The resulting Config is passed
// explicitly to the components it configures; nothing here is global.
package config

import (
	"net/url"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/formats/columnar"
	"github.com/ajitpratap0/movieport/pkg/iceberg"
	"github.com/ajitpratap0/movieport/pkg/logger"
	"github.com/ajitpratap0/movieport/pkg/objectstore"
	"github.com/ajitpratap0/movieport/pkg/store/postgres"
)

const redacted = "***REDACTED***"

// Config is the complete configuration of one pipeline run
type Config struct {
	Database    postgres.Config   `yaml:"database" mapstructure:"database"`
	ObjectStore ObjectStoreConfig `yaml:"object_store" mapstructure:"object_store"`
	Catalog     CatalogConfig     `yaml:"catalog" mapstructure:"catalog"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Logging     logger.Config     `yaml:"logging" mapstructure:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing" mapstructure:"tracing"`
}

// ObjectStoreConfig adds the bucket names to the endpoint settings
type ObjectStoreConfig struct {
	objectstore.Config `yaml:",inline" mapstructure:",squash"`
	// MoviesBucket holds the text interchange file
	MoviesBucket string `yaml:"movies_bucket" mapstructure:"movies_bucket"`
	// WarehouseBucket is the root of table data files
	WarehouseBucket string `yaml:"warehouse_bucket" mapstructure:"warehouse_bucket"`
}

// CatalogConfig locates the table catalog. The warehouse is derived from the object store.
type CatalogConfig struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Driver string `yaml:"driver" mapstructure:"driver"`
	// DSN is only needed when the catalog does not share the relational store's database
	DSN        string            `yaml:"dsn" mapstructure:"dsn"`
	Namespace  string            `yaml:"namespace" mapstructure:"namespace"`
	Table      string            `yaml:"table" mapstructure:"table"`
	Properties map[string]string `yaml:"properties" mapstructure:"properties"`
}

// PipelineConfig controls the stage inputs and outputs
type PipelineConfig struct {
	BaselineCount int `yaml:"baseline_count" mapstructure:"baseline_count"`
	// WorkDir receives the local columnar and text files
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
	// SeedFile replaces the embedded seed text file when set
	SeedFile string `yaml:"seed_file" mapstructure:"seed_file"`
	SeedKey  string `yaml:"seed_key" mapstructure:"seed_key"`
	// RelationalParquet and SeedParquet are the columnar outputs of the two export stages
	RelationalParquet string `yaml:"relational_parquet" mapstructure:"relational_parquet"`
	SeedParquet       string `yaml:"seed_parquet" mapstructure:"seed_parquet"`
	// TextExport is the relational->text output; its extension selects compression
	TextExport         string `yaml:"text_export" mapstructure:"text_export"`
	ParquetCompression string `yaml:"parquet_compression" mapstructure:"parquet_compression"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// TracingConfig controls stage spans
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	PrettyPrint bool   `yaml:"pretty_print" mapstructure:"pretty_print"`
}

// Default returns a configuration targeting local PostgreSQL and MinIO
func Default() *Config {
	cat := iceberg.DefaultConfig()
	return &Config{
		Database: postgres.DefaultConfig(),
		ObjectStore: ObjectStoreConfig{
			Config:          objectstore.DefaultConfig(),
			MoviesBucket:    "movies-bucket",
			WarehouseBucket: "warehouse",
		},
		Catalog: CatalogConfig{
			Name:      cat.Name,
			Driver:    cat.Driver,
			Namespace: cat.Namespace,
			Table:     cat.Table,
		},
		Pipeline: PipelineConfig{
			BaselineCount:      48,
			WorkDir:            ".",
			SeedKey:            "extra_movies.csv",
			RelationalParquet:  "movies.parquet",
			SeedParquet:        "extra_movies.parquet",
			TextExport:         "movies.csv",
			ParquetCompression: "gzip",
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Tracing: TracingConfig{
			ServiceName: "movieport",
		},
	}
}

// Validate checks the configuration for correctness before any connection is made
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New(errors.ErrorTypeConfig, "database.url is required")
	}
	if c.ObjectStore.Endpoint == "" && c.ObjectStore.Region == "" {
		return errors.New(errors.ErrorTypeConfig, "object_store.endpoint or object_store.region is required")
	}
	if c.ObjectStore.MoviesBucket == "" || c.ObjectStore.WarehouseBucket == "" {
		return errors.New(errors.ErrorTypeConfig, "object_store.movies_bucket and object_store.warehouse_bucket are required")
	}
	if c.ObjectStore.MoviesBucket == c.ObjectStore.WarehouseBucket {
		return errors.Newf(errors.ErrorTypeConfig, "movies and warehouse buckets must differ, both are %q", c.ObjectStore.MoviesBucket)
	}
	if c.Pipeline.BaselineCount <= 0 {
		return errors.New(errors.ErrorTypeConfig, "pipeline.baseline_count must be positive")
	}
	if c.Pipeline.SeedKey == "" || c.Pipeline.RelationalParquet == "" || c.Pipeline.SeedParquet == "" || c.Pipeline.TextExport == "" {
		return errors.New(errors.ErrorTypeConfig, "pipeline file names must not be empty")
	}
	if _, err := columnar.ParseCompression(c.Pipeline.ParquetCompression); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid logging.level")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New(errors.ErrorTypeConfig, "metrics.addr is required when metrics are enabled")
	}
	return c.Iceberg().Validate()
}

// Iceberg derives the table codec configuration. Table data lives in the warehouse bucket.
func (c *Config) Iceberg() iceberg.Config {
	return iceberg.Config{
		Name:      c.Catalog.Name,
		Driver:    c.Catalog.Driver,
		DSN:       c.Catalog.DSN,
		Namespace: c.Catalog.Namespace,
		Table:     c.Catalog.Table,
		Warehouse: "s3://" + c.ObjectStore.WarehouseBucket,
		S3: iceberg.S3Config{
			Endpoint:  c.ObjectStore.Endpoint,
			Region:    c.ObjectStore.Region,
			AccessKey: c.ObjectStore.AccessKey,
			SecretKey: c.ObjectStore.SecretKey,
			PathStyle: c.ObjectStore.PathStyle,
		},
		Props: c.Catalog.Properties,
	}
}

// SharesDatabase reports whether the catalog tables live in the relational store's database
func (c *Config) SharesDatabase() bool {
	return c.Catalog.Driver == iceberg.DriverPostgres && c.Catalog.DSN == ""
}

// Redacted returns a copy with credentials masked, safe to print or log
func (c *Config) Redacted() *Config {
	out := *c
	out.Database.URL = redactURL(c.Database.URL)
	out.Catalog.DSN = redactURL(c.Catalog.DSN)
	if out.ObjectStore.AccessKey != "" {
		out.ObjectStore.AccessKey = redacted
	}
	if out.ObjectStore.SecretKey != "" {
		out.ObjectStore.SecretKey = redacted
	}
	if len(c.Catalog.Properties) > 0 {
		out.Catalog.Properties = iceberg.SanitizeProperties(c.Catalog.Properties)
	}
	return &out
}

// redactURL masks the password of a URL-style DSN. Other DSNs carrying credentials are masked whole.
func redactURL(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	if strings.Contains(dsn, "@") {
		return redacted
	}
	return dsn
}
