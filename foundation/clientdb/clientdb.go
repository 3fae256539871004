// Package clientdb opens the local reading log, sqlite on the appliance or
// a shared mysql server, and runs its migration
package clientdb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// The migrations are executed every time New is called, so they must not
// create duplicate data.
var (
	//go:embed sql/sqlite.sql
	migrateSqlite string
	//go:embed sql/mysql.sql
	migrateMysql string
)

const (
	DriverSqlite = "sqlite"
	DriverMysql  = "mysql"
)

const queryTimeout = 2 * time.Second

var ErrClosed = errors.New("clientdb: closed")

type ClientDB struct {
	db     *sql.DB
	driver string
	closed bool
}

// New opens dsn with the given driver. For sqlite the dsn is a file path;
// for mysql it's a go-sql-driver DSN like "user:pass@tcp(host:3306)/gluehwo".
func New(driver, dsn string) (*ClientDB, error) {
	var (
		dataSourceName string
		migrate        string
	)
	switch driver {
	case DriverSqlite:
		const connectionParams = "?_pragma=busy_timeout(1000)&_pragma=journal_mode(WAL)"
		dataSourceName = dsn + connectionParams
		migrate = migrateSqlite
	case DriverMysql:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		if cfg.Timeout == 0 {
			cfg.Timeout = queryTimeout
		}
		dataSourceName = cfg.FormatDSN()
		migrate = migrateMysql
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open connection: %q: %w", driver, err)
	}

	cln := ClientDB{
		db:     db,
		driver: driver,
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if _, err := cln.db.ExecContext(ctx, migrate); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("exec migration: %w", err)
	}

	return &cln, nil
}

func (cln *ClientDB) Driver() string {
	return cln.driver
}

func (cln *ClientDB) Close() error {
	if cln.closed {
		return nil
	}
	cln.closed = true
	return cln.db.Close()
}

// Exec runs a statement that returns no rows and reports the affected row count
func (cln *ClientDB) Exec(query string, args ...any) (int64, error) {
	if cln.closed {
		return 0, ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	res, err := cln.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec %q: %w", firstLine(query), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Query calls scan once per row. scan must not keep rows.
func (cln *ClientDB) Query(query string, params []any, scan func(rows *sql.Rows) error) error {
	if cln.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	rows, err := cln.db.QueryContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("query %q: %w", firstLine(query), err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}
	return rows.Err()
}

func (cln *ClientDB) QueryRow(query string, params []any, fields ...any) error {
	if cln.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	row := cln.db.QueryRowContext(ctx, query, params...)
	return row.Scan(fields...)
}

func firstLine(query string) string {
	query = strings.TrimSpace(query)
	if i := strings.IndexByte(query, '\n'); i >= 0 {
		return query[:i]
	}
	return query
}
