// Package postgres is the relational store adapter: bulk read, upsert, reset
// and clear against the movies table.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/pkg/dataset"
	"github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/logger"
	"github.com/ajitpratap0/movieport/pkg/models"
)

// DefaultTable is the table holding movies
const DefaultTable = "movies"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// DB adds what the store needs beyond DBTX: transactions and bulk copy
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// ConnInfo describes the session the store is connected as
type ConnInfo struct {
	User     string `json:"user"`
	Database string `json:"database"`
	Host     string `json:"host"`
	Port     int32  `json:"port"`
}

// Store reads and writes movies
type Store struct {
	db     DB
	table  pgx.Identifier
	logger *zap.Logger
}

// Option customizes a Store
type Option func(*Store)

// WithTable overrides the table name
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = pgx.Identifier{name}
		}
	}
}

// NewStore wraps a pool or transaction
func NewStore(db DB, l *zap.Logger, opts ...Option) *Store {
	if l == nil {
		l = logger.Named("postgres")
	}
	s := &Store{db: db, table: pgx.Identifier{DefaultTable}, logger: l}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) tableName() string {
	return s.table.Sanitize()
}

// EnsureSchema creates the table if missing and seeds the baseline dataset when it is empty
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	rating       REAL NOT NULL,
	release_date DATE NOT NULL
)`, s.tableName())
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to create table").WithDetail("table", s.tableName())
	}

	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	baseline, err := dataset.Baseline()
	if err != nil {
		return err
	}

	rows := make([][]any, len(baseline))
	for i, m := range baseline {
		rows[i] = []any{m.IDValue(), m.Name, m.Rating, m.ReleaseDate}
	}
	copied, err := s.db.CopyFrom(ctx, s.table, models.MovieSchema.Columns(), pgx.CopyFromRows(rows))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to seed baseline").WithDetail("table", s.tableName())
	}
	if err := s.realignSequence(ctx, s.db); err != nil {
		return err
	}

	s.logger.Info("seeded baseline dataset", zap.Int64("records", copied))
	return nil
}

// ReadAll returns every row ordered by id
func (s *Store) ReadAll(ctx context.Context) ([]models.Movie, error) {
	query := fmt.Sprintf(`SELECT id, name, rating, release_date FROM %s ORDER BY id`, s.tableName())
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to query movies").WithDetail("table", s.tableName())
	}

	movies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Movie, error) {
		var (
			m  models.Movie
			id int64
		)
		if err := row.Scan(&id, &m.Name, &m.Rating, &m.ReleaseDate); err != nil {
			return m, err
		}
		m.ID = models.Int64(id)
		m.ReleaseDate = models.Date(m.ReleaseDate.Date())
		return m, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan movies").WithDetail("table", s.tableName())
	}

	s.logger.Debug("read movies", zap.Int("records", len(movies)))
	return movies, nil
}

// WriteAll upserts movies in one transaction. Rows with an id are inserted or
// updated in place; rows without one are inserted and get a new id. Empty
// input returns 0 without issuing any statement.
func (s *Store) WriteAll(ctx context.Context, movies []models.Movie) (int, error) {
	if len(movies) == 0 {
		return 0, nil
	}
	if err := models.ValidateAll(movies); err != nil {
		return 0, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	upsert := fmt.Sprintf(`INSERT INTO %s (id, name, rating, release_date) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, rating = EXCLUDED.rating, release_date = EXCLUDED.release_date`, s.tableName())
	insert := fmt.Sprintf(`INSERT INTO %s (name, rating, release_date) VALUES ($1, $2, $3) RETURNING id`, s.tableName())

	batch := &pgx.Batch{}
	explicit := 0
	for _, m := range movies {
		if m.HasID() {
			batch.Queue(upsert, *m.ID, m.Name, m.Rating, m.ReleaseDate)
			explicit++
		} else {
			batch.Queue(insert, m.Name, m.Rating, m.ReleaseDate)
		}
	}

	written, assigned, err := s.execBatch(ctx, tx, batch, movies)
	if err != nil {
		return 0, err
	}

	if explicit > 0 {
		if err := s.realignSequence(ctx, tx); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to commit transaction")
	}

	s.logger.Info("wrote movies",
		zap.Int("records", written),
		zap.Int("updated_or_keyed", explicit),
		zap.Int("assigned_ids", assigned))
	return written, nil
}

func (s *Store) execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, movies []models.Movie) (written, assigned int, err error) {
	br := tx.SendBatch(ctx, batch)
	defer func() {
		if cerr := br.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeQuery, "failed to close batch")
		}
	}()

	for i, m := range movies {
		if m.HasID() {
			tag, err := br.Exec()
			if err != nil {
				return written, assigned, errors.Wrap(err, errors.ErrorTypeQuery, "failed to upsert movie").
					WithDetail("index", i).
					WithDetail("id", *m.ID)
			}
			written += int(tag.RowsAffected())
			continue
		}

		var id int64
		if err := br.QueryRow().Scan(&id); err != nil {
			return written, assigned, errors.Wrap(err, errors.ErrorTypeQuery, "failed to insert movie").
				WithDetail("index", i).
				WithDetail("name", m.Name)
		}
		written++
		assigned++
	}
	return written, assigned, nil
}

// realignSequence moves the id sequence past the highest id so later inserts never collide
func (s *Store) realignSequence(ctx context.Context, db DBTX) error {
	query := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence($1, 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`, s.tableName())
	if _, err := db.Exec(ctx, query, s.tableName()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to realign id sequence").WithDetail("table", s.tableName())
	}
	return nil
}

// ResetToDefault deletes every row whose id exceeds defaultCount, restoring the
// baseline. Nothing is deleted when the table holds at most defaultCount rows.
func (s *Store) ResetToDefault(ctx context.Context, defaultCount int) (int64, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count <= int64(defaultCount) {
		s.logger.Debug("table already at baseline", zap.Int64("records", count))
		return 0, nil
	}

	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id > $1`, s.tableName()), defaultCount)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to reset table").WithDetail("table", s.tableName())
	}
	if err := s.realignSequence(ctx, s.db); err != nil {
		return 0, err
	}

	s.logger.Info("reset table to baseline",
		zap.Int("baseline", defaultCount),
		zap.Int64("deleted", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// ClearAll deletes every row
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.tableName()))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to clear table").WithDetail("table", s.tableName())
	}
	s.logger.Info("cleared table", zap.Int64("deleted", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// Count returns the number of rows
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.tableName())).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to count movies").WithDetail("table", s.tableName())
	}
	return count, nil
}

// ConnInfo reports the session user, database and server address
func (s *Store) ConnInfo(ctx context.Context) (ConnInfo, error) {
	var info ConnInfo
	err := s.db.QueryRow(ctx,
		`SELECT current_user, current_database(), COALESCE(host(inet_server_addr()), ''), COALESCE(inet_server_port(), 0)`,
	).Scan(&info.User, &info.Database, &info.Host, &info.Port)
	if err != nil {
		return ConnInfo{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read connection info")
	}
	return info, nil
}
