package driver

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// SQLite backs LOCAL auth mode: development and tests run the full
// lifecycle against an embedded database instead of a warehouse.
type SQLite struct {
	path    string
	timeout time.Duration
}

// NewSQLite returns a driver over the database at path. ":memory:" works.
func NewSQLite(path string, timeout time.Duration) *SQLite {
	return &SQLite{path: path, timeout: timeout}
}

func (d *SQLite) Name() string { return "sqlite" }

// Connect opens the database. Tokens are ignored; LOCAL mode has a single
// ambient identity.
func (d *SQLite) Connect(ctx context.Context, token string) (Conn, error) {
	db, err := sql.Open("sqlite3", d.path)
	if err != nil {
		return nil, protocol.ConnectionError(
			"Could not open the local database.", err.Error()).WithCause(err)
	}
	// sqlite connections don't tolerate concurrent writers well.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, protocol.ConnectionError(
			"Could not open the local database.", err.Error()).WithCause(err)
	}
	return &sqlConn{db: db, bind: bindPositional, timeout: d.timeout}, nil
}
