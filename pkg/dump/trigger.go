package dump

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var triggerNameRe = regexp.MustCompile("(?i)\\bTRIGGER\\s+((?:`(?:[^`]|``)+`|[^\\s`.]+)(?:\\.(?:`(?:[^`]|``)+`|[^\\s`.]+))?)")

// RenderTriggers returns one statement block per trigger of table.
func RenderTriggers(ctx context.Context, exec Executor, table string, cfg TriggerConfig) ([]string, error) {
	creates, err := exec.ListTriggers(ctx, table)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get triggers of table %s", table)
	}

	triggers := make([]string, 0, len(creates))

	for _, create := range creates {
		create = strings.TrimRight(strings.TrimSpace(create), ";")
		if create == "" {
			continue
		}

		triggers = append(triggers, renderTrigger(create, cfg))
	}

	return triggers, nil
}

func renderTrigger(create string, cfg TriggerConfig) string {
	var sb strings.Builder

	if cfg.DropIfExists {
		if m := triggerNameRe.FindStringSubmatch(create); m != nil {
			sb.WriteString("DROP TRIGGER IF EXISTS " + m[1] + ";\n")
		}
	}

	if !cfg.Definer {
		create = stripTriggerDefiner(create)
	}

	sb.WriteString("DELIMITER " + cfg.Delimiter + "\n")
	sb.WriteString(create + cfg.Delimiter + "\n")
	sb.WriteString("DELIMITER ;")

	return sb.String()
}

// stripTriggerDefiner removes the DEFINER clause between CREATE and TRIGGER.
func stripTriggerDefiner(create string) string {
	loc := triggerNameRe.FindStringIndex(create)
	if loc == nil {
		return create
	}

	return definerRe.ReplaceAllString(create[:loc[0]], "") + create[loc[0]:]
}
