package core

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// supported database engines
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		Close() error
	}
)

var (
	_ DBExecutor = (*sqlx.Tx)(nil)
	_ DB         = (*sqlx.DB)(nil)
)
