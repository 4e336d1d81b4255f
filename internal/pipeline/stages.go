package pipeline

import (
	"bytes"
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/formats/delimited"
	"github.com/ajitpratap0/movieport/pkg/observability"
)

// Stage names as they appear in logs, metrics and the run report
const (
	StageReset                = "reset"
	StageCleanBuckets         = "clean_buckets"
	StageSeedBucket           = "seed_bucket"
	StageRelationalToColumnar = "relational_to_columnar"
	StageBucketTextToColumnar = "bucket_text_to_columnar"
	StageColumnarToRelational = "columnar_to_relational"
	StageRelationalToText     = "relational_to_text"
	StageRelationalToTable    = "relational_to_table"
	StageTableToRelational    = "table_to_relational"
)

// resetBaseline makes sure the relational table exists and holds exactly the baseline
func (o *Orchestrator) resetBaseline(ctx context.Context, r *run) error {
	return o.stage(ctx, r, StageReset, func(ctx context.Context) (int, int, error) {
		if err := o.store.EnsureSchema(ctx); err != nil {
			return 0, 0, err
		}
		before, err := o.store.Count(ctx)
		if err != nil {
			return 0, 0, err
		}
		if _, err := o.store.ResetToDefault(ctx, o.config.BaselineCount); err != nil {
			return int(before), 0, err
		}
		// a reload with fresh ids leaves nothing below the baseline; reseed it
		if err := o.store.EnsureSchema(ctx); err != nil {
			return int(before), 0, err
		}
		after, err := o.store.Count(ctx)
		if err != nil {
			return int(before), 0, err
		}
		return int(before), int(after), checkCount(StageReset, o.config.BaselineCount, int(after))
	})
}

// cleanStorage drops the table, then recreates both buckets. The table goes
// first because its metadata files live in the warehouse bucket.
func (o *Orchestrator) cleanStorage(ctx context.Context) error {
	if err := o.table.Reset(ctx); err != nil {
		return err
	}
	for _, bucket := range []string{o.config.MoviesBucket, o.config.WarehouseBucket} {
		if err := o.buckets.EnsureCleanBucket(ctx, bucket); err != nil {
			return err
		}
	}
	return nil
}

// seedBucket leaves the movies bucket holding only the seed text file
func (o *Orchestrator) seedBucket(ctx context.Context, r *run) error {
	return o.stage(ctx, r, StageSeedBucket, func(ctx context.Context) (int, int, error) {
		// a malformed seed fails here rather than in a later stage
		movies, err := o.text.Decode(bytes.NewReader(o.config.Seed))
		if err != nil {
			return 0, 0, errors.Wrap(err, errors.ErrorTypeParse, "invalid seed text file")
		}
		if err := o.cleanStorage(ctx); err != nil {
			return len(movies), 0, err
		}
		if err := o.buckets.Upload(ctx, o.config.MoviesBucket, o.config.SeedKey, o.config.Seed, delimited.ContentType); err != nil {
			return len(movies), 0, err
		}
		keys, err := o.buckets.ListKeys(ctx, o.config.MoviesBucket)
		if err != nil {
			return len(movies), 0, err
		}
		if len(keys) != 1 || keys[0] != o.config.SeedKey {
			return len(movies), 0, errors.Newf(errors.ErrorTypeStorage, "movies bucket holds %d objects after seeding", len(keys)).
				WithDetail("bucket", o.config.MoviesBucket).
				WithDetail("keys", keys)
		}
		observability.AddEvent(ctx, "seed uploaded", attribute.Int("movieport.seed.bytes", len(o.config.Seed)))
		r.logger.Debug("uploaded seed file",
			zap.String("bucket", o.config.MoviesBucket),
			zap.String("key", o.config.SeedKey),
			zap.Int("bytes", len(o.config.Seed)))
		return len(movies), len(movies), nil
	})
}

// reloadFromTable treats the table as the source of truth: its rows replace the
// relational contents and get fresh ids from the store
func (o *Orchestrator) reloadFromTable(ctx context.Context, r *run) error {
	return o.transfer(ctx, r, StageTableToRelational, o.versionedTable(), replaceRelational{o.store}, ResetIDs)
}
