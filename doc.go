// Package movieport moves one movie catalog between a relational store, local
// Parquet and CSV files, a CSV object in an S3 bucket and an Apache Iceberg
// table, verifying record counts at every hop.
//
// # Architecture
//
// Every format maps to the same four-field logical schema (models.MovieSchema):
// id, name, rating, releaseDate. Each storage format has a codec:
//
//   - pkg/formats/delimited: CSV interchange text, optionally compressed
//   - pkg/formats/columnar:  a single Parquet file, dictionary encoded and gzip compressed
//   - pkg/iceberg:           an append-only Iceberg table with a SQL catalog
//   - pkg/store/postgres:    the movies table, the only component that assigns ids
//   - pkg/objectstore:       the two S3 buckets, interchange and warehouse
//
// internal/pipeline sequences them. A run resets PostgreSQL to the 48-row
// baseline, recreates both buckets, uploads the 50-row seed CSV and then
// converts postgres -> parquet, bucket csv -> parquet, parquet -> postgres,
// postgres -> csv, postgres -> iceberg and finally iceberg -> postgres with
// fresh ids. A stage that writes a different number of records than it read
// fails the run.
//
// # Quick Start
//
//	docker run -d -p 5432:5432 -e POSTGRES_PASSWORD=postgres postgres:16
//	docker run -d -p 9000:9000 minio/minio server /data
//
//	export MOVIEPORT_OBJECT_STORE_ACCESS_KEY=minioadmin
//	export MOVIEPORT_OBJECT_STORE_SECRET_KEY=minioadmin
//	movieport run --report run.json
//
// # Configuration
//
// Defaults target local PostgreSQL and MinIO. A YAML file (--config) and
// MOVIEPORT_* environment variables override them; `movieport config` prints
// the effective values with secrets masked.
package movieport
