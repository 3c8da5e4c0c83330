package dump_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/partyzanex/testutils"
	perrors "github.com/pkg/errors"
)

func connectTo(exec dump.Executor) dump.Connector {
	return func(ctx context.Context, conn dump.ConnectionConfig) (dump.Executor, error) {
		return exec, nil
	}
}

func TestDumper_Dump(t *testing.T) {
	d := &dump.Dumper{Connect: connectTo(newShop()), Workers: 2}

	result, err := d.Dump(context.Background(), dump.Options{Connection: validConnection()})
	testutils.FatalErr(t, "d.Dump", err)

	schema := "--\n-- Structure for table `users`\n--\n\n" +
		"CREATE TABLE IF NOT EXISTS `users` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `name` varchar(10) DEFAULT NULL,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=5 DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;\n\n" +
		"--\n-- Structure for view `active`\n--\n\n" +
		"CREATE OR REPLACE VIEW `active` AS select `users`.`id` AS `id` from `users`;\n"

	data := "--\n-- Data for table `users`\n--\n\n" +
		"INSERT INTO\n  `users` (`id`, `name`)\nVALUES\n  (1, 'alice'),\n  (2, NULL);\n"

	trigger := "--\n-- Triggers for table `users`\n--\n\n" +
		"DROP TRIGGER IF EXISTS `users_bi`;\n" +
		"DELIMITER ;;\n" +
		"CREATE TRIGGER `users_bi` BEFORE INSERT ON `users` FOR EACH ROW SET NEW.name = LOWER(NEW.name);;\n" +
		"DELIMITER ;\n"

	testutils.AssertEqual(t, "schema", schema, result.Dump.Schema.String)
	testutils.AssertEqual(t, "data", data, result.Dump.Data.String)
	testutils.AssertEqual(t, "trigger", trigger, result.Dump.Trigger.String)

	testutils.AssertEqualFatal(t, "len(tables)", 2, len(result.Tables))

	users, active := result.Tables[0], result.Tables[1]

	testutils.AssertEqual(t, "users.Name", "users", users.Name)
	testutils.AssertEqual(t, "users.IsView", false, users.IsView)
	testutils.AssertEqual(t, "users.Data.Valid", true, users.Data.Valid)
	testutils.AssertEqual(t, "len(users.Triggers)", 1, len(users.Triggers))

	testutils.AssertEqual(t, "active.Name", "active", active.Name)
	testutils.AssertEqual(t, "active.IsView", true, active.IsView)
	testutils.AssertEqual(t, "active.Data.Valid", false, active.Data.Valid)
	testutils.AssertEqual(t, "len(active.Triggers)", 0, len(active.Triggers))

	for _, table := range result.Tables {
		testutils.AssertEqual(t, table.Name+" columns", len(table.Columns), len(table.ColumnsOrdered))

		for _, column := range table.ColumnsOrdered {
			_, ok := table.Columns[column]
			testutils.AssertEqual(t, table.Name+"."+column, true, ok)
		}
	}

	testutils.AssertEqual(t, "master status", true, result.MasterStatus == nil)
}

func TestDumper_Dump_NoHeaders(t *testing.T) {
	d := &dump.Dumper{Connect: connectTo(newShop())}

	result, err := d.Dump(context.Background(), dump.Options{
		Connection: validConnection(),
		Dump: dump.DumpOptions{
			NoHeaders: true,
			Tables:    []string{"users"},
			Schema:    dump.SchemaOptions{Skip: true},
			Trigger:   dump.TriggerOptions{Skip: true},
		},
	})
	testutils.FatalErr(t, "d.Dump", err)

	testutils.AssertEqual(t, "schema valid", false, result.Dump.Schema.Valid)
	testutils.AssertEqual(t, "trigger valid", false, result.Dump.Trigger.Valid)
	testutils.AssertEqual(t, "data", "INSERT INTO\n  `users` (`id`, `name`)\nVALUES\n  (1, 'alice'),\n  (2, NULL);\n",
		result.Dump.Data.String)

	testutils.AssertEqualFatal(t, "len(tables)", 1, len(result.Tables))
	testutils.AssertEqual(t, "users.Schema.Valid", false, result.Tables[0].Schema.Valid)
}

func TestDumper_Dump_SkipEverything(t *testing.T) {
	d := &dump.Dumper{Connect: connectTo(newShop())}

	result, err := d.Dump(context.Background(), dump.Options{
		Connection: validConnection(),
		Dump: dump.DumpOptions{
			Schema:  dump.SchemaOptions{Skip: true},
			Data:    dump.DataOptions{Skip: true},
			Trigger: dump.TriggerOptions{Skip: true},
		},
	})
	testutils.FatalErr(t, "d.Dump", err)

	testutils.AssertEqual(t, "schema valid", false, result.Dump.Schema.Valid)
	testutils.AssertEqual(t, "data valid", false, result.Dump.Data.Valid)
	testutils.AssertEqual(t, "trigger valid", false, result.Dump.Trigger.Valid)
	testutils.AssertEqual(t, "len(tables)", 2, len(result.Tables))
	testutils.AssertEqual(t, "columns", 2, len(result.Tables[0].ColumnsOrdered))
}

func TestDumper_Dump_EmptyDatabase(t *testing.T) {
	d := &dump.Dumper{Connect: connectTo(&fakeExecutor{})}

	result, err := d.Dump(context.Background(), dump.Options{Connection: validConnection()})
	testutils.FatalErr(t, "d.Dump", err)

	testutils.AssertEqual(t, "schema valid", true, result.Dump.Schema.Valid)
	testutils.AssertEqual(t, "schema", "", result.Dump.Schema.String)
	testutils.AssertEqual(t, "data", "", result.Dump.Data.String)
	testutils.AssertEqual(t, "len(tables)", 0, len(result.Tables))
}

func TestDumper_Dump_Order(t *testing.T) {
	const n = 20

	exec := &fakeExecutor{
		columns: map[string][]dump.ColumnInfo{},
		creates: map[string]string{},
		rows:    map[string][]dump.Row{},
	}

	for i := 0; i < n; i++ {
		name := fmt.Sprintf("t%02d", i)

		exec.tables = append(exec.tables, dump.Entity{Name: name})
		exec.columns[name] = []dump.ColumnInfo{{Name: "id", Type: "int"}}
		exec.creates[name] = "CREATE TABLE `" + name + "` (\n  `id` int\n)"
		exec.rows[name] = []dump.Row{row("id", fmt.Sprint(i))}
	}

	// the first tables finish last
	exec.delay = func(table string) time.Duration {
		var i int
		_, _ = fmt.Sscanf(table, "t%d", &i)

		return time.Duration(n-i) * time.Millisecond
	}

	d := &dump.Dumper{Connect: connectTo(exec), Workers: 8}

	result, err := d.Dump(context.Background(), dump.Options{
		Connection: validConnection(),
		Dump:       dump.DumpOptions{NoHeaders: true},
	})
	testutils.FatalErr(t, "d.Dump", err)

	testutils.AssertEqualFatal(t, "len(tables)", n, len(result.Tables))

	var expected string

	for i, table := range result.Tables {
		name := fmt.Sprintf("t%02d", i)
		testutils.AssertEqual(t, "table name", name, table.Name)

		if i > 0 {
			expected += "\n\n"
		}

		expected += fmt.Sprintf("INSERT INTO\n  `%s` (`id`)\nVALUES\n  (%d);", name, i)
	}

	testutils.AssertEqual(t, "data", expected+"\n", result.Dump.Data.String)
}

func TestDumper_Dump_Errors(t *testing.T) {
	called := false
	d := &dump.Dumper{
		Connect: func(ctx context.Context, conn dump.ConnectionConfig) (dump.Executor, error) {
			called = true
			return newShop(), nil
		},
	}

	_, err := d.Dump(context.Background(), dump.Options{Connection: &dump.ConnectionConfig{Host: "h"}})
	testutils.AssertEqual(t, "err", dump.ErrMissingConnectionDatabase, err)
	testutils.AssertEqual(t, "connect called", false, called)

	_, err = (&dump.Dumper{}).Dump(context.Background(), dump.Options{Connection: validConnection()})
	testutils.AssertEqual(t, "no connector", dump.ErrNoConnector, err)

	exp := errors.New("connection refused")
	d.Connect = func(ctx context.Context, conn dump.ConnectionConfig) (dump.Executor, error) {
		return nil, exp
	}

	_, err = d.Dump(context.Background(), dump.Options{Connection: validConnection()})
	testutils.AssertEqual(t, "connect", true, perrors.Is(err, exp))
}

func TestDumper_Run_TableVanished(t *testing.T) {
	exec := newShop()
	exec.tables = append(exec.tables, dump.Entity{Name: "gone"})

	result, err := (&dump.Dumper{Workers: 2}).Run(context.Background(), exec, resolve(t, dump.DumpOptions{}))

	testutils.AssertEqual(t, "err", true, perrors.Is(err, dump.ErrTableVanished))
	testutils.AssertEqual(t, "result", true, result == nil)
}

func TestDumper_Run_LockTables(t *testing.T) {
	exec := &lockingExecutor{fakeExecutor: newShop()}
	cfg := resolve(t, dump.DumpOptions{Data: dump.DataOptions{LockTables: true}})

	_, err := (&dump.Dumper{}).Run(context.Background(), exec, cfg)
	testutils.FatalErr(t, "d.Run", err)

	testutils.AssertEqual(t, "locked", 1, exec.locked)
	testutils.AssertEqual(t, "unlocked", 1, exec.unlocked)

	// the lock is released when the dump fails
	exec.errs = map[string]error{"users": errors.New("expected error")}

	_, err = (&dump.Dumper{}).Run(context.Background(), exec, cfg)
	testutils.AssertEqual(t, "err", true, err != nil)
	testutils.AssertEqual(t, "locked", 2, exec.locked)
	testutils.AssertEqual(t, "unlocked", 2, exec.unlocked)

	// no lock without data
	cfg = resolve(t, dump.DumpOptions{Data: dump.DataOptions{LockTables: true, Skip: true}})

	_, err = (&dump.Dumper{}).Run(context.Background(), exec, cfg)
	testutils.FatalErr(t, "d.Run", err)
	testutils.AssertEqual(t, "locked", 2, exec.locked)
}

func TestDumper_Run_MasterData(t *testing.T) {
	exec := &positionedExecutor{
		fakeExecutor: newShop(),
		pos:          dump.BinlogPosition{File: "mysql-bin.000003", Position: 154},
	}

	cfg := resolve(t, dump.DumpOptions{
		NoHeaders: true,
		Tables:    []string{"users"},
		Data:      dump.DataOptions{MasterData: true},
	})

	result, err := (&dump.Dumper{}).Run(context.Background(), exec, cfg)
	testutils.FatalErr(t, "d.Run", err)

	testutils.AssertEqualFatal(t, "master status", true, result.MasterStatus != nil)
	testutils.AssertEqual(t, "position", exec.pos, *result.MasterStatus)
	testutils.AssertEqual(t, "data",
		"-- CHANGE MASTER TO MASTER_LOG_FILE='mysql-bin.000003', MASTER_LOG_POS=154;\n\n"+
			"INSERT INTO\n  `users` (`id`, `name`)\nVALUES\n  (1, 'alice'),\n  (2, NULL);\n",
		result.Dump.Data.String)

	_, err = (&dump.Dumper{}).Run(context.Background(), newShop(), cfg)
	testutils.AssertEqual(t, "not found", dump.ErrMasterDataNotFound, err)
}

func TestDumper_Run_OnTable(t *testing.T) {
	var count int64

	done := make(chan string, 2)
	d := &dump.Dumper{
		Workers: 2,
		OnTable: func(table *dump.Table) {
			done <- table.Name
		},
	}

	_, err := d.Run(context.Background(), newShop(), resolve(t, dump.DumpOptions{}))
	testutils.FatalErr(t, "d.Run", err)

	close(done)

	for range done {
		count++
	}

	testutils.AssertEqual(t, "count", int64(2), count)
}
