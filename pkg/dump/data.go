package dump

import (
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
)

var (
	openParenthesis   = []byte("(")
	closedParenthesis = []byte(")")
	tupleSeparator    = []byte(",\n  ")
	eol               = []byte(";")
)

// RenderData renders the rows of a base table as INSERT statements holding at
// most cfg.MaxRowsPerInsert tuples and, unless a single tuple is larger,
// at most cfg.MaxStatementSize bytes. Views render nothing.
func RenderData(ctx context.Context, exec Executor, table *Table, cfg DataConfig) (string, error) {
	if table.IsView {
		return "", nil
	}

	var (
		out = &strings.Builder{}
		buf = &bytes.Buffer{}

		columns = table.InsertColumns()
		insert  = []byte("INSERT INTO\n  " + QuoteIdent(table.Name) + " (" + QuoteColumns(columns) + ")\nVALUES\n  ")
		rules   = cfg.Rules(table.Name)
		max     = cfg.MaxRowsPerInsert
		size    = cfg.MaxStatementSize
		current = 0
	)

	flush := func() {
		if current == 0 {
			return
		}

		buf.Write(eol)

		if out.Len() > 0 {
			out.WriteByte('\n')
		}

		out.Write(buf.Bytes())
		buf.Reset()
		current = 0
	}

	query := RowsQuery{
		Table:   table.Name,
		Columns: table.ColumnsOrdered,
		Where:   cfg.Where[table.Name],
	}

	err := exec.StreamRows(ctx, query, func(row Row) error {
		tuple, err := encodeRow(table, columns, rules, row)
		if err != nil {
			return err
		}

		if current > 0 {
			next := buf.Len() + len(tupleSeparator) + len(tuple) + len(eol)
			if current >= max || next > size {
				flush()
			}
		}

		if current == 0 {
			buf.Write(insert)
		} else {
			buf.Write(tupleSeparator)
		}

		buf.Write(tuple)
		current++

		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "unable to dump rows of table %s", table.Name)
	}

	flush()

	return out.String(), nil
}

// encodeRow renders one value tuple aligned with columns. Generated
// columns are read for rule matching but never rendered.
func encodeRow(table *Table, columns []string, rules ColumnRules, row Row) ([]byte, error) {
	values := make([][]byte, len(columns))

	for i, column := range columns {
		v, ok := row[column]
		if !ok {
			return nil, errors.Wrapf(ErrColumnMismatch, "table %s: no value for column %s", table.Name, column)
		}

		if literal, ok := rules.Substitute(column, row); ok {
			values[i] = []byte(literal)
			continue
		}

		values[i] = []byte(EncodeValue(table.Columns[column].Type, v))
	}

	tuple := make([]byte, 0, 64)
	tuple = append(tuple, openParenthesis...)
	tuple = append(tuple, bytes.Join(values, []byte(", "))...)
	tuple = append(tuple, closedParenthesis...)

	return tuple, nil
}
