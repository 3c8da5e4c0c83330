package dump

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/partyzanex/mydump/pkg/pool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/volatiletech/null"
)

// Dumper orchestrates a dump: table discovery, introspection and rendering
// of every table, then the concatenation of the per-table fragments.
type Dumper struct {
	Connect Connector

	// Workers is the number of tables processed at the same time.
	Workers int
	Verbose bool

	// OnTable is called from a worker goroutine after each table is done.
	OnTable func(table *Table)
}

// Dump validates opts, connects and runs the dump. The connection is closed
// afterwards when the executor implements io.Closer.
func (d *Dumper) Dump(ctx context.Context, opts Options) (*DumpReturn, error) {
	cfg, err := Resolve(opts)
	if err != nil {
		return nil, err
	}

	if d.Connect == nil {
		return nil, ErrNoConnector
	}

	exec, err := d.Connect(ctx, cfg.Connection)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect")
	}

	if closer, ok := exec.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logrus.Error(err)
			}
		}()
	}

	return d.Run(ctx, exec, cfg)
}

// Run dumps through an already connected executor. Any failure aborts the
// whole dump and no partial result is returned.
func (d *Dumper) Run(ctx context.Context, exec Executor, cfg Config) (*DumpReturn, error) {
	entities, err := DiscoverTables(ctx, exec, cfg)
	if err != nil {
		return nil, err
	}

	if d.Verbose {
		logrus.Infof("runs dump for %d tables", len(entities))
	}

	result := &DumpReturn{
		Tables: make([]*Table, len(entities)),
	}

	if cfg.Data.Enabled && cfg.Data.LockTables {
		unlock, err := d.lock(ctx, exec)
		if err != nil {
			return nil, err
		}

		defer unlock()
	}

	if cfg.Data.Enabled && cfg.Data.MasterData {
		pos, err := binlogPosition(ctx, exec)
		if err != nil {
			return nil, err
		}

		result.MasterStatus = &pos
	}

	err = d.process(ctx, exec, cfg, entities, result.Tables)
	if err != nil {
		return nil, err
	}

	result.Dump = assemble(cfg, result.Tables, result.MasterStatus)

	return result, nil
}

func (d *Dumper) lock(ctx context.Context, exec Executor) (func(), error) {
	locker, ok := exec.(Locker)
	if !ok {
		logrus.Warn("executor can not lock tables, dumping without lock")
		return func() {}, nil
	}

	if d.Verbose {
		logrus.Infof("flush tables with read lock")
	}

	unlock, err := locker.LockForDump(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "flush tables with read lock failed")
	}

	return func() {
		// the dump context may already be canceled, unlock anyway
		err := unlock(context.Background())
		if err != nil {
			logrus.Error(err)
			return
		}

		if d.Verbose {
			logrus.Infof("unlock tables for read")
		}
	}, nil
}

func binlogPosition(ctx context.Context, exec Executor) (BinlogPosition, error) {
	positioner, ok := exec.(BinlogPositioner)
	if !ok {
		return BinlogPosition{}, ErrMasterDataNotFound
	}

	pos, err := positioner.BinlogPosition(ctx)
	if err != nil {
		return BinlogPosition{}, errors.Wrap(err, "unable to get binlog position")
	}

	return pos, nil
}

// process fills tables[i] for entities[i]; workers write only their own slot,
// so the result order is the discovery order whatever the completion order.
func (d *Dumper) process(ctx context.Context, exec Executor, cfg Config, entities []Entity, tables []*Table) error {
	workers := pool.NewWorkersPool(pool.WithCtx(ctx), pool.Size(d.threads()))

	if d.Verbose {
		logrus.Infof("runs %d workers", d.threads())
	}

	for i := range entities {
		workers.AddTask(&task{
			UID: i,
			RunFunc: func(ctx context.Context, t *task) error {
				table, err := d.dumpTable(ctx, exec, cfg, entities[t.UID])
				if err != nil {
					return err
				}

				tables[t.UID] = table

				if d.OnTable != nil {
					d.OnTable(table)
				}

				return nil
			},
		})
	}

	return workers.Wait()
}

func (d *Dumper) threads() int {
	if d.Workers < 1 {
		return 1
	}

	return d.Workers
}

func (d *Dumper) dumpTable(ctx context.Context, exec Executor, cfg Config, entity Entity) (*Table, error) {
	if d.Verbose {
		logrus.Infof("starting dump for table '%s'", entity.Name)
	}

	table := &Table{
		Name:          entity.Name,
		IsView:        entity.IsView,
		ModifyColumns: cfg.Data.ModifyColumns[entity.Name],
		Triggers:      []string{},
	}

	columns, ordered, err := IntrospectColumns(ctx, exec, entity.Name)
	if err != nil {
		return nil, err
	}

	table.Columns = columns
	table.ColumnsOrdered = ordered

	if cfg.Schema.Enabled {
		logrus.Debugf("getting DDL for table %s", entity.Name)

		schema, err := RenderSchema(ctx, exec, entity, cfg.Schema)
		if err != nil {
			return nil, err
		}

		table.Schema = null.StringFrom(schema)
	}

	if cfg.Trigger.Enabled && !entity.IsView {
		triggers, err := RenderTriggers(ctx, exec, entity.Name, cfg.Trigger)
		if err != nil {
			return nil, err
		}

		table.Triggers = triggers
	}

	if cfg.Data.Enabled && !entity.IsView {
		logrus.Debugf("gets rows from executor for table %s", entity.Name)

		data, err := RenderData(ctx, exec, table, cfg.Data)
		if err != nil {
			return nil, err
		}

		table.Data = null.StringFrom(data)
	}

	if d.Verbose {
		logrus.Infof("finished dump for table '%s'", entity.Name)
	}

	return table, nil
}

const fragmentSeparator = "\n\n"

// assemble concatenates per-table fragments in table order. A disabled
// category stays null; an enabled one is a string, even when empty.
func assemble(cfg Config, tables []*Table, pos *BinlogPosition) Dump {
	var (
		dump     Dump
		schema   []string
		data     []string
		triggers []string
	)

	if pos != nil {
		data = append(data, fmt.Sprintf("-- CHANGE MASTER TO MASTER_LOG_FILE='%s', MASTER_LOG_POS=%d;", Escape(pos.File), pos.Position))
	}

	for _, table := range tables {
		if table.Schema.Valid && table.Schema.String != "" {
			kind := "table"
			if table.IsView {
				kind = "view"
			}

			schema = append(schema, header(cfg, "Structure for "+kind, table.Name)+table.Schema.String)
		}

		if table.Data.Valid && table.Data.String != "" {
			data = append(data, header(cfg, "Data for table", table.Name)+table.Data.String)
		}

		if len(table.Triggers) > 0 {
			triggers = append(triggers, header(cfg, "Triggers for table", table.Name)+strings.Join(table.Triggers, fragmentSeparator))
		}
	}

	if cfg.Schema.Enabled {
		dump.Schema = null.StringFrom(join(schema))
	}

	if cfg.Data.Enabled {
		dump.Data = null.StringFrom(join(data))
	}

	if cfg.Trigger.Enabled {
		dump.Trigger = null.StringFrom(join(triggers))
	}

	return dump
}

func header(cfg Config, title, table string) string {
	if !cfg.Headers {
		return ""
	}

	return fmt.Sprintf("--\n-- %s `%s`\n--\n\n", title, table)
}

func join(fragments []string) string {
	if len(fragments) == 0 {
		return ""
	}

	return strings.Join(fragments, fragmentSeparator) + "\n"
}
