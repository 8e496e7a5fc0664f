package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Database is a SQL handle plus the dialect the document store speaks to it.
type Database struct {
	*sql.DB
	dialect dialect
}

type dialect struct {
	name      string
	forUpdate string
	numbered  bool
}

// bind returns the n-th (1-based) bind parameter for the dialect.
func (d dialect) bind(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func InitDB(ctx context.Context, driver, dsn string) (*Database, error) {
	var (
		sqlDriver string
		d         dialect
	)
	switch driver {
	case DriverSQLite, "":
		sqlDriver = "sqlite"
		d = dialect{name: DriverSQLite}
	case DriverPostgres:
		sqlDriver = "pgx"
		d = dialect{name: DriverPostgres, forUpdate: " FOR UPDATE", numbered: true}
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("Error trying to open DB: %w", err)
	}

	// SQLite allows a single writer; one connection keeps every
	// read-modify-write transaction serialized instead of failing with SQLITE_BUSY.
	if d.name == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Error trying to connect: %w", err)
	}

	return &Database{DB: db, dialect: d}, nil
}

func (db *Database) Driver() string {
	return db.dialect.name
}

func (db *Database) createCollectionTable(ctx context.Context, name string) error {
	schema := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        id TEXT PRIMARY KEY,
        doc TEXT NOT NULL
    )`, name)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("Error trying to create collection %s: %w", name, err)
	}
	return nil
}
