package master

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErrBinlogDisabled is returned when the server has no binary log.
var ErrBinlogDisabled = errors.New("binary logging is disabled")

// ER_PARSE_ERROR, returned by servers that dropped SHOW MASTER STATUS
const errParse = 1064

// Repository represents repository layer for master
type Repository struct {
	db *sqlx.DB
}

// ShowStatus returns Status (parsed result of `show master status`).
// Servers without the legacy statement are asked for `show binary log status`.
func (repo *Repository) ShowStatus(ctx context.Context) (status *Status, err error) {
	status = &Status{}

	// MariaDB has no Executed_Gtid_Set, newer servers add columns
	db := repo.db.Unsafe()

	err = db.GetContext(ctx, status, `show master status`)

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errParse {
		err = db.GetContext(ctx, status, `show binary log status`)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBinlogDisabled
	}

	if err != nil {
		return nil, errors.Wrap(err, "unable to get master status")
	}

	return
}

// New creates a new repository
func New(db *sql.DB) *Repository {
	return &Repository{
		db: sqlx.NewDb(db, "mysql"),
	}
}
