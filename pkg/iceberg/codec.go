// Package iceberg implements the versioned table codec: an append-only Apache
// Iceberg table whose metadata lives in a SQL catalog and whose data files
// live under the warehouse location, usually an S3 bucket.
//
// Every Write adds one data file and commits one append snapshot. Readers only
// ever see committed snapshots.
package iceberg

import (
	"context"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	iceberg "github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/catalog"
	"github.com/apache/iceberg-go/table"
	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/logger"
	"github.com/ajitpratap0/movieport/pkg/models"
)

// Codec reads and writes movies through an Iceberg table
type Codec struct {
	config  Config
	cat     catalog.Catalog
	closeDB func() error
	mem     memory.Allocator
	logger  *zap.Logger
}

// Snapshot is one entry of the table history
type Snapshot struct {
	ID        int64             `json:"id"`
	ParentID  *int64            `json:"parent_id,omitempty"`
	Sequence  int64             `json:"sequence"`
	Timestamp time.Time         `json:"timestamp"`
	Operation string            `json:"operation"`
	Summary   map[string]string `json:"summary,omitempty"`
	Current   bool              `json:"current"`
}

// Open validates cfg and connects the catalog. The returned codec must be closed.
func Open(cfg Config, l *zap.Logger, opts ...Option) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Named("iceberg")
	}

	cat, closeDB, err := openCatalog(cfg, l, opts...)
	if err != nil {
		return nil, err
	}

	return &Codec{
		config:  cfg,
		cat:     cat,
		closeDB: closeDB,
		mem:     memory.NewGoAllocator(),
		logger:  l.With(zap.String("table", cfg.Identifier())),
	}, nil
}

// Close releases the catalog connection when the codec opened it
func (c *Codec) Close() error {
	if c.closeDB == nil {
		return nil
	}
	if err := c.closeDB(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeCatalog, "failed to close catalog database")
	}
	return nil
}

// Write appends movies as a single data file in one commit and returns the count.
// Empty input touches neither the catalog nor storage.
func (c *Codec) Write(ctx context.Context, movies []models.Movie) (int, error) {
	if len(movies) == 0 {
		return 0, nil
	}
	if err := models.ValidateAll(movies); err != nil {
		return 0, err
	}

	tbl, err := c.ensureTable(ctx)
	if err != nil {
		return 0, err
	}

	rec := buildRecord(c.mem, movies)
	defer rec.Release()

	rdr, err := array.NewRecordReader(arrowSchema, []arrow.Record{rec})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to create record reader")
	}
	defer rdr.Release()

	props := iceberg.Properties{"movieport.records": strconv.Itoa(len(movies))}
	updated, err := tbl.Append(ctx, rdr, props)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to commit append").
			WithDetail("table", c.config.Identifier()).
			WithDetail("records", len(movies))
	}

	fields := []zap.Field{zap.Int("records", len(movies))}
	if snap := updated.CurrentSnapshot(); snap != nil {
		fields = append(fields, zap.Int64("snapshot_id", snap.SnapshotID))
	}
	c.logger.Info("appended to table", fields...)
	return len(movies), nil
}

// Read returns every live row of the current snapshot in scan order.
// It fails with a catalog error when the table does not exist.
func (c *Codec) Read(ctx context.Context) ([]models.Movie, error) {
	tbl, err := c.loadTable(ctx)
	if err != nil {
		return nil, err
	}
	return c.scan(ctx, tbl.Scan())
}

// ReadSnapshot returns the rows visible at a past snapshot
func (c *Codec) ReadSnapshot(ctx context.Context, snapshotID int64) ([]models.Movie, error) {
	tbl, err := c.loadTable(ctx)
	if err != nil {
		return nil, err
	}
	if tbl.SnapshotByID(snapshotID) == nil {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "snapshot %d not found", snapshotID).
			WithDetail("table", c.config.Identifier())
	}
	return c.scan(ctx, tbl.Scan(table.WithSnapshotID(snapshotID)))
}

func (c *Codec) scan(ctx context.Context, scan *table.Scan) ([]models.Movie, error) {
	_, records, err := scan.ToArrowRecords(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to plan table scan").
			WithDetail("table", c.config.Identifier())
	}

	var movies []models.Movie
	for rec, err := range records {
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read table data").
				WithDetail("table", c.config.Identifier())
		}
		movies, err = appendRecord(movies, rec)
		rec.Release()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchema, "invalid table row").
				WithDetail("table", c.config.Identifier())
		}
	}
	if movies == nil {
		movies = []models.Movie{}
	}

	c.logger.Debug("scanned table", zap.Int("records", len(movies)))
	return movies, nil
}

// Reset drops the table from the catalog if present. Only the catalog entry is
// removed, so it succeeds even after the warehouse files are gone.
func (c *Codec) Reset(ctx context.Context) error {
	if err := c.cat.DropTable(ctx, c.identifier()); err != nil {
		if errors.Is(err, catalog.ErrNoSuchTable) {
			return nil
		}
		return errors.Wrap(err, errors.ErrorTypeCatalog, "failed to drop table").
			WithDetail("table", c.config.Identifier())
	}
	c.logger.Info("dropped table")
	return nil
}

// Snapshots lists the table history, oldest first
func (c *Codec) Snapshots(ctx context.Context) ([]Snapshot, error) {
	tbl, err := c.loadTable(ctx)
	if err != nil {
		return nil, err
	}

	var currentID int64 = -1
	if cur := tbl.CurrentSnapshot(); cur != nil {
		currentID = cur.SnapshotID
	}

	history := tbl.Metadata().Snapshots()
	out := make([]Snapshot, 0, len(history))
	for _, s := range history {
		snap := Snapshot{
			ID:        s.SnapshotID,
			ParentID:  s.ParentSnapshotID,
			Sequence:  s.SequenceNumber,
			Timestamp: time.UnixMilli(s.TimestampMs).UTC(),
			Current:   s.SnapshotID == currentID,
		}
		if s.Summary != nil {
			snap.Operation = string(s.Summary.Operation)
			snap.Summary = s.Summary.Properties
		}
		out = append(out, snap)
	}
	return out, nil
}
