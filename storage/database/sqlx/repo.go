package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
)

// repo holds what every repository needs. Queries are written with `?` and rebound for the driver in use.
type repo struct {
	exec core.DBExecutor
}

func (r repo) q(query string) string {
	return r.exec.Rebind(query)
}

// in expands `IN (?)` clauses then rebinds.
func (r repo) in(query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return r.exec.Rebind(query), args, nil
}

func (r repo) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return r.exec.GetContext(ctx, dest, r.q(query), args...)
}

func (r repo) execAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.exec.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// trapNoRowsErr maps "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
