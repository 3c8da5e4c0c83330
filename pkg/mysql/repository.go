package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/partyzanex/mydump/pkg/master"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/volatiletech/null"
)

const (
	BaseTable = "BASE TABLE"
	View      = "VIEW"
)

// Repository implements dump.Executor for MySQL.
type Repository struct {
	db *sqlx.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{
		db: sqlx.NewDb(db, "mysql"),
	}
}

func (repo *Repository) Close() error {
	return repo.db.Close()
}

// ListTables returns base tables first, then views, each group by name,
// so that replaying the dump creates tables before the views reading them.
func (repo *Repository) ListTables(ctx context.Context) ([]dump.Entity, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT TABLE_NAME, TABLE_TYPE
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
		ORDER BY TABLE_TYPE = 'VIEW', TABLE_NAME`)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var tables []dump.Entity

	for rows.Next() {
		var tableName, tableType string

		err = rows.Scan(&tableName, &tableType)
		if err != nil {
			return nil, err
		}

		tables = append(tables, dump.Entity{
			Name:   tableName,
			IsView: tableType == View,
		})
	}

	return tables, rows.Err()
}

type columnRow struct {
	Name     string `db:"column_name"`
	Type     string `db:"column_type"`
	Nullable string `db:"is_nullable"`
	Extra    string `db:"extra"`
}

// ListColumns reads the column catalog ordered by definition.
func (repo *Repository) ListColumns(ctx context.Context, table string) ([]dump.ColumnInfo, error) {
	var rows []columnRow

	err := repo.db.SelectContext(ctx, &rows, `
		SELECT COLUMN_NAME AS column_name, COLUMN_TYPE AS column_type, IS_NULLABLE AS is_nullable,
			EXTRA AS extra
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, err
	}

	columns := make([]dump.ColumnInfo, len(rows))

	for i, row := range rows {
		columns[i] = dump.ColumnInfo{
			Name:      row.Name,
			Type:      row.Type,
			Nullable:  row.Nullable == "YES",
			Generated: isGenerated(row.Extra),
		}
	}

	return columns, nil
}

// isGenerated reports VIRTUAL GENERATED and STORED GENERATED columns.
// DEFAULT_GENERATED only marks an expression default and is not one of them.
func isGenerated(extra string) bool {
	extra = strings.ToUpper(extra)

	return strings.Contains(extra, "VIRTUAL GENERATED") || strings.Contains(extra, "STORED GENERATED")
}

type createTrigger struct {
	Trigger   string `db:"Trigger"`
	Statement string `db:"SQL Original Statement"`
}

// ListTriggers returns SHOW CREATE TRIGGER statements for the table.
func (repo *Repository) ListTriggers(ctx context.Context, table string) ([]string, error) {
	var names []string

	err := repo.db.SelectContext(ctx, &names, `
		SELECT TRIGGER_NAME
		FROM information_schema.TRIGGERS
		WHERE EVENT_OBJECT_SCHEMA = DATABASE() AND EVENT_OBJECT_TABLE = ?
		ORDER BY EVENT_MANIPULATION, ACTION_TIMING, ACTION_ORDER`, table)
	if err != nil {
		return nil, err
	}

	triggers := make([]string, 0, len(names))

	for _, name := range names {
		var trigger createTrigger

		err = repo.db.Unsafe().GetContext(ctx, &trigger, "SHOW CREATE TRIGGER "+dump.QuoteIdent(name))
		if err != nil {
			return nil, errors.Wrapf(err, "show create trigger %s", name)
		}

		triggers = append(triggers, trigger.Statement)
	}

	return triggers, nil
}

type createTable struct {
	Table  string `db:"Table"`
	Create string `db:"Create Table"`
}

type createView struct {
	View   string `db:"View"`
	Create string `db:"Create View"`
}

// GetCreateStatement returns SHOW CREATE TABLE or SHOW CREATE VIEW output.
func (repo *Repository) GetCreateStatement(ctx context.Context, entity dump.Entity) (string, error) {
	if entity.IsView {
		var view createView

		err := repo.db.Unsafe().GetContext(ctx, &view, "SHOW CREATE VIEW "+dump.QuoteIdent(entity.Name))
		if err != nil {
			return "", err
		}

		return view.Create, nil
	}

	var table createTable

	err := repo.db.GetContext(ctx, &table, "SHOW CREATE TABLE "+dump.QuoteIdent(entity.Name))
	if err != nil {
		return "", err
	}

	return table.Create, nil
}

// GetSelectQuery builds the SELECT used to stream a table.
func (repo *Repository) GetSelectQuery(query dump.RowsQuery) string {
	cols := "*"

	if len(query.Columns) > 0 {
		cols = dump.QuoteColumns(query.Columns)
	}

	q := fmt.Sprintf("SELECT %s FROM %s", cols, dump.QuoteIdent(query.Table))

	if query.Where != "" {
		q += " WHERE " + query.Where
	}

	return q
}

// StreamRows scans the rows of a table one at a time and hands them to fn.
func (repo *Repository) StreamRows(ctx context.Context, query dump.RowsQuery, fn func(dump.Row) error) error {
	q := repo.GetSelectQuery(query)

	logrus.Debugf("executing query '%s'", q)

	rows, err := repo.db.QueryContext(ctx, q)
	if err != nil {
		return errors.Wrapf(err, "unable to execute query '%s'", q)
	}

	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return errors.Wrap(err, "unable to get columns")
	}

	n := len(columns)
	values := make([]null.String, n)
	args := make([]interface{}, n)

	for i := range values {
		args[i] = &values[i]
	}

	for rows.Next() {
		err := rows.Scan(args...)
		if err != nil {
			return errors.Wrap(err, "unable to scan row")
		}

		row := make(dump.Row, n)

		for i, column := range columns {
			row[column] = values[i]
		}

		if err := fn(row); err != nil {
			return err
		}
	}

	return rows.Err()
}

// LockForDump holds FLUSH TABLES WITH READ LOCK on a dedicated connection
// until unlock is called. Reads on other connections keep working.
func (repo *Repository) LockForDump(ctx context.Context) (func(ctx context.Context) error, error) {
	conn, err := repo.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to get connection")
	}

	_, err = conn.ExecContext(ctx, "FLUSH TABLES WITH READ LOCK")
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	unlock := func(ctx context.Context) error {
		_, err := conn.ExecContext(ctx, "UNLOCK TABLES")

		errCl := conn.Close()
		if err != nil && errCl != nil {
			return errors.Errorf("unlock tables returns many errors: %s; %s", err, errCl)
		}

		if err != nil {
			return errors.Wrap(err, "unable to unlock tables")
		}

		return errCl
	}

	return unlock, nil
}

// BinlogPosition reads the current binlog coordinates.
func (repo *Repository) BinlogPosition(ctx context.Context) (dump.BinlogPosition, error) {
	status, err := master.New(repo.db.DB).ShowStatus(ctx)
	if err != nil {
		return dump.BinlogPosition{}, err
	}

	return dump.BinlogPosition{
		File:     status.File,
		Position: status.Position,
	}, nil
}
