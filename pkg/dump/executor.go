package dump

import "context"

// Executor is the query capability the engine needs. Errors returned by it
// are surfaced to the caller, wrapped with the failing step.
type Executor interface {
	// ListTables returns tables and views in the database's listing order.
	ListTables(ctx context.Context) ([]Entity, error)
	// ListColumns returns the column catalog of a table in definition order.
	ListColumns(ctx context.Context, table string) ([]ColumnInfo, error)
	// ListTriggers returns the create statements of the table's triggers.
	ListTriggers(ctx context.Context, table string) ([]string, error)
	// GetCreateStatement returns SHOW CREATE output for a table or view.
	GetCreateStatement(ctx context.Context, entity Entity) (string, error)
	// StreamRows calls fn for every row once; the sequence cannot be restarted.
	StreamRows(ctx context.Context, query RowsQuery, fn func(Row) error) error
}

// RowsQuery selects the rows of one table.
type RowsQuery struct {
	Table   string
	Columns []string
	Where   string
}

// Locker is implemented by executors that can freeze writes while dumping.
type Locker interface {
	LockForDump(ctx context.Context) (unlock func(ctx context.Context) error, err error)
}

// BinlogPositioner is implemented by executors that know the binlog position.
type BinlogPositioner interface {
	BinlogPosition(ctx context.Context) (BinlogPosition, error)
}

// Connector opens an executor for a validated connection config.
type Connector func(ctx context.Context, conn ConnectionConfig) (Executor, error)
