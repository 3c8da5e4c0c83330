package dump

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DiscoverTables lists the entities to dump. Base tables come before views;
// otherwise the database's listing order is kept whatever the order of
// cfg.Tables. Unknown names are ignored.
func DiscoverTables(ctx context.Context, exec Executor, cfg Config) ([]Entity, error) {
	all, err := exec.ListTables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to get tables")
	}

	return ViewsLast(FilterTables(all, cfg.Tables, cfg.ExcludeTables)), nil
}

// ViewsLast moves views behind base tables, keeping the relative order
// inside both groups.
func ViewsLast(entities []Entity) []Entity {
	sorted := make([]Entity, 0, len(entities))

	for _, entity := range entities {
		if !entity.IsView {
			sorted = append(sorted, entity)
		}
	}

	for _, entity := range entities {
		if entity.IsView {
			sorted = append(sorted, entity)
		}
	}

	return sorted
}

// FilterTables applies a whitelist (exclude == false) or blacklist filter.
func FilterTables(all []Entity, names []string, exclude bool) []Entity {
	if len(names) == 0 {
		return all
	}

	uniq := make(map[string]struct{}, len(names))

	for _, name := range names {
		uniq[name] = struct{}{}
	}

	toDump := make([]Entity, 0, len(all))

	for _, entity := range all {
		_, listed := uniq[entity.Name]
		if listed == exclude {
			logrus.Debugf("table %s filtered out", entity.Name)
			continue
		}

		toDump = append(toDump, entity)
	}

	return toDump
}
