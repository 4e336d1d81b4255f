package iceberg

import (
	"context"
	"database/sql"

	"github.com/apache/iceberg-go/catalog"
	sqlcat "github.com/apache/iceberg-go/catalog/sql"
	"github.com/apache/iceberg-go/table"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	// database/sql drivers for the catalog store
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/movieport/pkg/errors"
)

var dialects = map[string]sqlcat.SupportedDialect{
	DriverPostgres: sqlcat.Postgres,
	DriverMySQL:    sqlcat.MySQL,
	DriverSQLite:   sqlcat.SQLite,
}

var sqlDrivers = map[string]string{
	DriverPostgres: "pgx",
	DriverMySQL:    "mysql",
	DriverSQLite:   "sqlite",
}

// Option customizes how the catalog store is reached
type Option func(*options)

type options struct {
	pool *pgxpool.Pool
}

// WithPool hosts the catalog tables in the same PostgreSQL database as the
// relational store, sharing its connection pool.
func WithPool(pool *pgxpool.Pool) Option {
	return func(o *options) { o.pool = pool }
}

// openCatalog connects the SQL catalog. The returned func releases the database handle.
func openCatalog(cfg Config, log *zap.Logger, opts ...Option) (catalog.Catalog, func() error, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		db      *sql.DB
		closeDB func() error
	)
	switch {
	case o.pool != nil:
		if cfg.Driver != DriverPostgres {
			return nil, nil, errors.Newf(errors.ErrorTypeConfig, "a pgx pool cannot host a %s catalog", cfg.Driver)
		}
		db = stdlib.OpenDBFromPool(o.pool)
		closeDB = db.Close
	default:
		if cfg.DSN == "" {
			return nil, nil, errors.New(errors.ErrorTypeConfig, "catalog dsn is required when no connection is shared")
		}
		var err error
		db, err = sql.Open(sqlDrivers[cfg.Driver], cfg.DSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to open catalog database").
				WithDetail("driver", cfg.Driver)
		}
		closeDB = db.Close
	}

	props := cfg.Properties()
	log.Debug("opening sql catalog",
		zap.String("catalog", cfg.Name),
		zap.String("driver", cfg.Driver),
		zap.Any("properties", SanitizeProperties(props)))

	cat, err := sqlcat.NewCatalog(cfg.Name, db, dialects[cfg.Driver], props)
	if err != nil {
		if closeDB != nil {
			_ = closeDB()
		}
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to initialize sql catalog").
			WithDetail("driver", cfg.Driver)
	}
	return cat, closeDB, nil
}

func (c *Codec) identifier() table.Identifier {
	return catalog.ToIdentifier(c.config.Identifier())
}

func (c *Codec) namespace() table.Identifier {
	return catalog.ToIdentifier(c.config.Namespace)
}

// ensureTable loads the table, creating the namespace and an unpartitioned table when missing
func (c *Codec) ensureTable(ctx context.Context) (*table.Table, error) {
	ns := c.namespace()
	exists, err := c.cat.CheckNamespaceExists(ctx, ns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to check namespace").
			WithDetail("namespace", c.config.Namespace)
	}
	if !exists {
		if err := c.cat.CreateNamespace(ctx, ns, nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to create namespace").
				WithDetail("namespace", c.config.Namespace)
		}
		c.logger.Info("created namespace", zap.String("namespace", c.config.Namespace))
	}

	ident := c.identifier()
	exists, err = c.cat.CheckTableExists(ctx, ident)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to check table").
			WithDetail("table", c.config.Identifier())
	}
	if exists {
		return c.loadTable(ctx)
	}

	tbl, err := c.cat.CreateTable(ctx, ident, tableSchema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to create table").
			WithDetail("table", c.config.Identifier())
	}
	c.logger.Info("created table",
		zap.String("table", c.config.Identifier()),
		zap.String("location", tbl.Location()))
	return tbl, nil
}

func (c *Codec) loadTable(ctx context.Context) (*table.Table, error) {
	tbl, err := c.cat.LoadTable(ctx, c.identifier())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCatalog, "failed to load table").
			WithDetail("table", c.config.Identifier())
	}
	if err := checkTableSchema(tbl.Schema()); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "incompatible table schema").
			WithDetail("table", c.config.Identifier())
	}
	return tbl, nil
}
