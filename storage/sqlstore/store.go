// Package sqlstore implements storage.Store on database/sql, using pgx for
// PostgreSQL and modernc.org/sqlite for SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/metric"
	"github.com/paragnema1/scc/storage"
)

var _ storage.Store = (*Store)(nil)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Provider names.
const (
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"
)

// Config selects the database. DSN is used for postgres, Path for sqlite.
type Config struct {
	Provider string
	DSN      string
	Path     string
}

// PostgresDSN builds a connection URL from discrete settings.
func PostgresDSN(user, password, host string, port int, dbName string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + dbName,
		RawQuery: "sslmode=disable",
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String()
}

// Store is a SQL-backed storage.Store. One table per kind.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	metrics *storage.Metrics
}

// Option configures a Store
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records storage metrics in registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// Open connects to the database, pings it and creates any missing tables.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		d   dialect
		dsn string
	)
	switch cfg.Provider {
	case ProviderPostgres:
		if cfg.DSN == "" {
			return nil, errors.WrapInvalid(errors.ErrMissingConfig, "sqlstore", "Open", "check dsn")
		}
		d, dsn = postgresDialect, cfg.DSN
	case ProviderSQLite:
		if cfg.Path == "" {
			return nil, errors.WrapInvalid(errors.ErrMissingConfig, "sqlstore", "Open", "check path")
		}
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
				return nil, errors.WrapFatal(err, "sqlstore", "Open", "create dirs")
			}
		}
		d, dsn = sqliteDialect, cfg.Path
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: provider %q", errors.ErrInvalidConfig, cfg.Provider), "sqlstore", "Open", "select driver")
	}

	openMu.Lock()
	db, err := sqlOpen(d.driver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, errors.WrapFatal(err, "sqlstore", "Open", "open "+d.name)
	}
	if d.name == ProviderSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err), "sqlstore", "Open", "ping "+d.name)
	}

	metrics, err := storage.NewMetrics(o.registry, d.name)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		dialect: d,
		logger:  o.logger.With("component", "sqlstore", "provider", d.name),
		metrics: metrics,
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, kind := range storage.Kinds() {
		table, err := storage.TableFor(kind)
		if err != nil {
			return err
		}
		for _, stmt := range s.dialect.createTable(table) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return errors.WrapTransient(err, "sqlstore", "migrate", "create "+string(kind))
			}
		}
	}
	s.logger.Debug("Tables ready", "count", len(storage.Kinds()))
	return nil
}

// Insert implements storage.Store
func (s *Store) Insert(ctx context.Context, kind storage.Kind, rec storage.Record) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveWrite(kind, start, err) }()

	table, err := storage.TableFor(kind)
	if err != nil {
		return err
	}
	row, err := table.Normalize(rec)
	if err != nil {
		return err
	}
	if len(row) == 0 {
		return errors.WrapInvalid(fmt.Errorf("empty %s record", kind), "sqlstore", "Insert", "check record")
	}

	columns := make([]string, 0, len(row))
	for name := range row {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	args := make([]any, len(columns))
	for i, name := range columns {
		col, _ := table.Column(name)
		args[i], err = toArg(col, row[name])
		if err != nil {
			return errors.WrapInvalid(err, "sqlstore", "Insert", "encode "+name)
		}
	}

	if _, err = s.db.ExecContext(ctx, s.dialect.insert(table, columns), args...); err != nil {
		return errors.WrapTransient(err, "sqlstore", "Insert", "insert "+string(kind))
	}
	return nil
}

// Read implements storage.Store
func (s *Store) Read(ctx context.Context, kind storage.Kind) (_ []storage.Record, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRead(kind, start, err) }()

	table, err := storage.TableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.selectAll(table))
	if err != nil {
		return nil, errors.WrapTransient(err, "sqlstore", "Read", "select "+string(kind))
	}
	defer func() { _ = rows.Close() }()

	var out []storage.Record
	for rows.Next() {
		dest := make([]any, len(table.Columns))
		for i, c := range table.Columns {
			dest[i] = scanTarget(c.Type)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.WrapTransient(err, "sqlstore", "Read", "scan "+string(kind))
		}

		rec := make(storage.Record, len(table.Columns))
		for i, c := range table.Columns {
			v, ok, err := fromScan(dest[i])
			if err != nil {
				return nil, errors.WrapInvalid(err, "sqlstore", "Read", "decode "+c.Name)
			}
			if ok {
				rec[c.Name] = v
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "sqlstore", "Read", "iterate "+string(kind))
	}
	return out, nil
}

// Close implements storage.Store
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "sqlstore", "Close", "close database")
	}
	return nil
}

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

func toArg(col storage.Column, v any) (any, error) {
	if col.Type != storage.JSON {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// jsonColumn scans a JSON column stored as text or jsonb.
type jsonColumn struct {
	sql.NullString
}

func scanTarget(t storage.ColumnType) any {
	switch t {
	case storage.Float:
		return new(sql.NullFloat64)
	case storage.Int:
		return new(sql.NullInt64)
	case storage.Bool:
		return new(sql.NullBool)
	case storage.JSON:
		return new(jsonColumn)
	default:
		return new(sql.NullString)
	}
}

func fromScan(dest any) (any, bool, error) {
	switch v := dest.(type) {
	case *sql.NullString:
		return v.String, v.Valid, nil
	case *sql.NullFloat64:
		return v.Float64, v.Valid, nil
	case *sql.NullInt64:
		return v.Int64, v.Valid, nil
	case *sql.NullBool:
		return v.Bool, v.Valid, nil
	case *jsonColumn:
		if !v.Valid {
			return nil, false, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(v.String), &decoded); err != nil {
			return nil, false, err
		}
		return decoded, true, nil
	default:
		return nil, false, fmt.Errorf("unexpected scan target %T", dest)
	}
}
