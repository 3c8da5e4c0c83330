package dump

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	createTableRe   = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?`)
	createViewRe    = regexp.MustCompile(`(?i)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?`)
	autoIncrementRe = regexp.MustCompile(`(?i)\s+AUTO_INCREMENT=\d+`)
	engineRe        = regexp.MustCompile(`(?i)\s+ENGINE=\w+`)
	charsetRe       = regexp.MustCompile(`(?i)\s+(?:DEFAULT\s+)?(?:CHARSET|CHARACTER SET)=\w+`)
	collateRe       = regexp.MustCompile(`(?i)\s+(?:DEFAULT\s+)?COLLATE=\w+`)
	algorithmRe     = regexp.MustCompile(`(?i)ALGORITHM=\w+\s+`)
	definerRe       = regexp.MustCompile("(?i)DEFINER=(?:`[^`]*`|'[^']*'|[^@\\s]+)@(?:`[^`]*`|'[^']*'|\\S+)\\s+")
	sqlSecurityRe   = regexp.MustCompile(`(?i)SQL\s+SECURITY\s+\w+\s+`)
	viewKeywordRe   = regexp.MustCompile(`(?i)\bVIEW\s`)
)

// RenderSchema returns the DDL of a table or view.
func RenderSchema(ctx context.Context, exec Executor, entity Entity, cfg SchemaConfig) (string, error) {
	create, err := exec.GetCreateStatement(ctx, entity)
	if err != nil {
		return "", errors.Wrapf(err, "unable to get create statement of %s", entity.Name)
	}

	create = strings.TrimRight(strings.TrimSpace(create), ";")
	if create == "" {
		return "", errors.Wrapf(ErrNoCreateStatement, "table %s", entity.Name)
	}

	if entity.IsView {
		return renderView(create, cfg), nil
	}

	return renderTable(entity.Name, create, cfg), nil
}

func renderTable(name, create string, cfg SchemaConfig) string {
	ddl := createTableRe.ReplaceAllString(create, "CREATE TABLE IF NOT EXISTS ")

	// table options follow the closing parenthesis of the definitions
	i := strings.LastIndex(ddl, "\n)")
	if i < 0 {
		i = strings.LastIndex(ddl, ")")
	}

	body, options := ddl, ""
	if i >= 0 {
		body, options = ddl[:i], ddl[i:]
	}

	if !cfg.AutoIncrement {
		options = autoIncrementRe.ReplaceAllString(options, "")
	}

	if !cfg.Engine {
		options = engineRe.ReplaceAllString(options, "")
	}

	if !cfg.Charset {
		options = charsetRe.ReplaceAllString(options, "")
		options = collateRe.ReplaceAllString(options, "")
	}

	ddl = body + options + ";"

	if cfg.DropTable {
		ddl = "DROP TABLE IF EXISTS " + QuoteIdent(name) + ";\n" + ddl
	}

	return ddl
}

func renderView(create string, cfg SchemaConfig) string {
	ddl := createViewRe.ReplaceAllString(create, "")

	// only the clauses before VIEW are rewritten, never the query itself
	head, query := "", ddl
	if loc := viewKeywordRe.FindStringIndex(ddl); loc != nil {
		head, query = ddl[:loc[0]], ddl[loc[0]:]
	}

	if !cfg.ViewAlgorithm {
		head = algorithmRe.ReplaceAllString(head, "")
	}

	if !cfg.ViewDefiner {
		head = definerRe.ReplaceAllString(head, "")
	}

	if !cfg.ViewSQLSecurity {
		head = sqlSecurityRe.ReplaceAllString(head, "")
	}

	return "CREATE OR REPLACE " + head + query + ";"
}
