package dump

import (
	"context"

	"github.com/pkg/errors"
)

// IntrospectColumns reads the column catalog of a table. The returned order
// is the definition order and is what INSERT tuples are aligned with.
func IntrospectColumns(ctx context.Context, exec Executor, table string) (ColumnList, []string, error) {
	infos, err := exec.ListColumns(ctx, table)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to get columns of table %s", table)
	}

	if len(infos) == 0 {
		return nil, nil, errors.Wrapf(ErrTableVanished, "table %s", table)
	}

	var (
		columns = make(ColumnList, len(infos))
		ordered = make([]string, 0, len(infos))
	)

	for _, info := range infos {
		if info.Name == "" {
			return nil, nil, errors.Wrapf(ErrColumnsUnreadable, "table %s: empty column name", table)
		}

		if _, ok := columns[info.Name]; ok {
			return nil, nil, errors.Wrapf(ErrColumnsUnreadable, "table %s: duplicate column %s", table, info.Name)
		}

		columns[info.Name] = Column{
			Type:      info.Type,
			Nullable:  info.Nullable,
			Generated: info.Generated,
		}
		ordered = append(ordered, info.Name)
	}

	return columns, ordered, nil
}
