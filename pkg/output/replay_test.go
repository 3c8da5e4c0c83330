package output_test

import (
	"context"
	"strings"
	"testing"

	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/partyzanex/mydump/pkg/output"
	"github.com/partyzanex/testutils"
	"github.com/volatiletech/null"
)

// shop lists its entities by name, as SHOW FULL TABLES does.
type shop struct{}

func (shop) ListTables(ctx context.Context) ([]dump.Entity, error) {
	return []dump.Entity{
		{Name: "active", IsView: true},
		{Name: "orders"},
		{Name: "users"},
	}, nil
}

func (shop) ListColumns(ctx context.Context, table string) ([]dump.ColumnInfo, error) {
	if table == "orders" {
		return []dump.ColumnInfo{{Name: "id", Type: "int"}, {Name: "user_id", Type: "int"}}, nil
	}

	return []dump.ColumnInfo{{Name: "id", Type: "int"}}, nil
}

func (shop) ListTriggers(ctx context.Context, table string) ([]string, error) {
	return nil, nil
}

func (shop) GetCreateStatement(ctx context.Context, entity dump.Entity) (string, error) {
	switch entity.Name {
	case "active":
		return "CREATE ALGORITHM=UNDEFINED DEFINER=`root`@`%` SQL SECURITY DEFINER " +
			"VIEW `active` AS select `users`.`id` AS `id` from `users`", nil
	case "orders":
		return "CREATE TABLE `orders` (\n" +
			"  `id` int NOT NULL,\n" +
			"  `user_id` int NOT NULL,\n" +
			"  CONSTRAINT `fk_user` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`)\n" +
			") ENGINE=InnoDB", nil
	}

	return "CREATE TABLE `users` (\n  `id` int NOT NULL AUTO_INCREMENT\n) ENGINE=InnoDB", nil
}

func (shop) StreamRows(ctx context.Context, query dump.RowsQuery, fn func(dump.Row) error) error {
	switch query.Table {
	case "orders":
		return fn(dump.Row{"id": null.StringFrom("1"), "user_id": null.StringFrom("0")})
	case "users":
		return fn(dump.Row{"id": null.StringFrom("0")})
	}

	return nil
}

func TestWriteDump_Replayable(t *testing.T) {
	d := &dump.Dumper{Workers: 2}
	password := ""

	cfg, err := dump.Resolve(dump.Options{
		Connection: &dump.ConnectionConfig{Host: "localhost", Database: "shop", User: "root", Password: &password},
	})
	testutils.FatalErr(t, "dump.Resolve", err)

	result, err := d.Run(context.Background(), shop{}, cfg)
	testutils.FatalErr(t, "d.Run", err)

	var sb strings.Builder

	_, err = output.WriteDump(&sb, result)
	testutils.FatalErr(t, "output.WriteDump", err)

	script := sb.String()
	view := strings.Index(script, "CREATE OR REPLACE VIEW `active`")
	users := strings.Index(script, "CREATE TABLE IF NOT EXISTS `users`")
	orders := strings.Index(script, "CREATE TABLE IF NOT EXISTS `orders`")
	checks := strings.Index(script, "FOREIGN_KEY_CHECKS=0;")

	testutils.AssertEqual(t, "header first", true, strings.HasPrefix(script, output.Header))
	testutils.AssertEqual(t, "footer last", true, strings.HasSuffix(script, output.Footer))
	testutils.AssertEqual(t, "view after users", true, users >= 0 && view > users)
	testutils.AssertEqual(t, "view after orders", true, orders >= 0 && view > orders)
	testutils.AssertEqual(t, "checks off before orders", true, checks >= 0 && checks < orders)
	testutils.AssertEqual(t, "zero ids kept", true,
		strings.Index(script, "NO_AUTO_VALUE_ON_ZERO") < strings.Index(script, "INSERT INTO"))
	testutils.AssertEqual(t, "set names", true, strings.Contains(script, "SET NAMES utf8mb4;"))
}
