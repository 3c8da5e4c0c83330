package dump_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/partyzanex/testutils"
	"github.com/volatiletech/null"
)

// fakeExecutor is an in-memory database. Every map is read-only once the
// executor is handed to a dump.
type fakeExecutor struct {
	tables   []dump.Entity
	columns  map[string][]dump.ColumnInfo
	creates  map[string]string
	triggers map[string][]string
	rows     map[string][]dump.Row

	// errs makes StreamRows fail for a table.
	errs  map[string]error
	delay func(table string) time.Duration

	mu      sync.Mutex
	queries []dump.RowsQuery
}

func (e *fakeExecutor) ListTables(ctx context.Context) ([]dump.Entity, error) {
	return e.tables, nil
}

func (e *fakeExecutor) ListColumns(ctx context.Context, table string) ([]dump.ColumnInfo, error) {
	if e.delay != nil {
		time.Sleep(e.delay(table))
	}

	return e.columns[table], nil
}

func (e *fakeExecutor) ListTriggers(ctx context.Context, table string) ([]string, error) {
	return e.triggers[table], nil
}

func (e *fakeExecutor) GetCreateStatement(ctx context.Context, entity dump.Entity) (string, error) {
	return e.creates[entity.Name], nil
}

func (e *fakeExecutor) StreamRows(ctx context.Context, query dump.RowsQuery, fn func(dump.Row) error) error {
	e.mu.Lock()
	e.queries = append(e.queries, query)
	e.mu.Unlock()

	if err := e.errs[query.Table]; err != nil {
		return err
	}

	for _, row := range e.rows[query.Table] {
		if err := fn(row); err != nil {
			return err
		}
	}

	return nil
}

// lockingExecutor counts lock and unlock calls.
type lockingExecutor struct {
	*fakeExecutor

	mu       sync.Mutex
	locked   int
	unlocked int
}

func (e *lockingExecutor) LockForDump(ctx context.Context) (func(ctx context.Context) error, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.locked++

	return func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		e.unlocked++

		return nil
	}, nil
}

// positionedExecutor reports a fixed binlog position.
type positionedExecutor struct {
	*fakeExecutor

	pos dump.BinlogPosition
}

func (e *positionedExecutor) BinlogPosition(ctx context.Context) (dump.BinlogPosition, error) {
	return e.pos, nil
}

func validConnection() *dump.ConnectionConfig {
	return &dump.ConnectionConfig{
		Host:     "localhost",
		Database: "shop",
		User:     "root",
		Password: dump.Password(""),
	}
}

func resolve(t *testing.T, opts dump.DumpOptions) dump.Config {
	t.Helper()

	cfg, err := dump.Resolve(dump.Options{
		Connection: validConnection(),
		Dump:       opts,
	})
	testutils.FatalErr(t, "dump.Resolve", err)

	return cfg
}

func row(kv ...string) dump.Row {
	r := make(dump.Row, len(kv)/2)

	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i]] = null.StringFrom(kv[i+1])
	}

	return r
}

const (
	usersCreate = "CREATE TABLE `users` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `name` varchar(10) DEFAULT NULL,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=5 DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci"
	activeCreate = "CREATE ALGORITHM=UNDEFINED DEFINER=`root`@`%` SQL SECURITY DEFINER " +
		"VIEW `active` AS select `users`.`id` AS `id` from `users`"
	usersTrigger = "CREATE DEFINER=`root`@`%` TRIGGER `users_bi` BEFORE INSERT ON `users` " +
		"FOR EACH ROW SET NEW.name = LOWER(NEW.name)"
)

// newShop returns a database with the users table, its trigger and
// the active view.
func newShop() *fakeExecutor {
	return &fakeExecutor{
		tables: []dump.Entity{
			{Name: "users"},
			{Name: "active", IsView: true},
		},
		columns: map[string][]dump.ColumnInfo{
			"users": {
				{Name: "id", Type: "int"},
				{Name: "name", Type: "varchar(10)", Nullable: true},
			},
			"active": {
				{Name: "id", Type: "int"},
			},
		},
		creates: map[string]string{
			"users":  usersCreate,
			"active": activeCreate,
		},
		triggers: map[string][]string{
			"users": {usersTrigger},
		},
		rows: map[string][]dump.Row{
			"users": {
				row("id", "1", "name", "alice"),
				{"id": null.StringFrom("2"), "name": null.String{}},
			},
		},
	}
}
