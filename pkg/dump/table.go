package dump

import (
	"strings"

	"github.com/volatiletech/null"
)

// Entity is a table or view as listed by the database.
type Entity struct {
	Name   string
	IsView bool
}

// ColumnInfo is one entry of the column catalog, in definition order.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
	// Generated is set for virtual and stored generated columns.
	Generated bool
}

type Column struct {
	// Type is the column type as reported by the database, e.g. "int(11) unsigned".
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
	// Generated columns are computed by the server and never inserted.
	Generated bool `json:"generated,omitempty" yaml:"generated,omitempty"`
}

// ColumnList maps column names to their definitions.
type ColumnList map[string]Column

// Table is the per-table part of a dump result.
type Table struct {
	Name   string      `json:"name" yaml:"name"`
	Schema null.String `json:"schema" yaml:"-"`
	Data   null.String `json:"data" yaml:"-"`

	Columns        ColumnList       `json:"columns" yaml:"columns"`
	ColumnsOrdered []string         `json:"columnsOrdered" yaml:"columnsOrdered"`
	ModifyColumns  ModifyColumnList `json:"modifyColumns" yaml:"modifyColumns,omitempty"`

	IsView   bool     `json:"isView" yaml:"isView"`
	Triggers []string `json:"triggers" yaml:"-"`
}

// InsertColumns returns ColumnsOrdered without generated columns.
func (table Table) InsertColumns() []string {
	columns := make([]string, 0, len(table.ColumnsOrdered))

	for _, name := range table.ColumnsOrdered {
		if table.Columns[name].Generated {
			continue
		}

		columns = append(columns, name)
	}

	return columns
}

// GetColumns returns the quoted column list of INSERT statements.
func (table Table) GetColumns() string {
	columns := table.InsertColumns()
	if len(columns) == 0 {
		return "*"
	}

	return QuoteColumns(columns)
}

// QuoteColumns quotes and joins column names.
func QuoteColumns(columns []string) string {
	quoted := make([]string, len(columns))

	for i, column := range columns {
		quoted[i] = QuoteIdent(column)
	}

	return strings.Join(quoted, ", ")
}

// QuoteIdent wraps an identifier in backticks, doubling embedded backticks.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Row is one table row keyed by column name. Invalid values are SQL NULL.
type Row map[string]null.String

// BinlogPosition is the source position reported by SHOW MASTER STATUS.
type BinlogPosition struct {
	File     string `json:"file" yaml:"file"`
	Position int64  `json:"position" yaml:"position"`
}

// Dump holds whole-database concatenations; a skipped category stays null.
type Dump struct {
	Schema  null.String `json:"schema"`
	Data    null.String `json:"data"`
	Trigger null.String `json:"trigger"`
}

// DumpReturn is the result of one dump invocation.
type DumpReturn struct {
	Dump         Dump            `json:"dump"`
	Tables       []*Table        `json:"tables"`
	MasterStatus *BinlogPosition `json:"masterStatus,omitempty"`
}
