package dump

import (
	"regexp"

	"github.com/pkg/errors"
)

// ModifyColumn replaces a column's value in rendered INSERT statements.
//
// Value is written into the statement verbatim and is never escaped, so it
// must already be a valid SQL literal: NULL, 0, 'redacted'. Passing
// untrusted text here produces broken or injectable dumps.
type ModifyColumn struct {
	Value string              `koanf:"value" json:"value" yaml:"value"`
	Match []ModifyColumnMatch `koanf:"match" json:"match" yaml:"match"`
}

// ModifyColumnMatch is satisfied when all of its operators are.
type ModifyColumnMatch struct {
	Operators []MatchOperator `koanf:"operators" json:"operators" yaml:"operators"`
}

// MatchOperator tests Column of a row against Pattern, a regular expression
// that must match the whole value. Behaviour inverts the result.
type MatchOperator struct {
	Column    string `koanf:"column" json:"column" yaml:"column"`
	Pattern   string `koanf:"pattern" json:"pattern" yaml:"pattern"`
	Behaviour bool   `koanf:"behaviour" json:"behaviour" yaml:"behaviour"`
}

// ModifyColumnList maps column names to their rules.
type ModifyColumnList map[string]ModifyColumn

// ColumnRule is a compiled ModifyColumn.
type ColumnRule struct {
	Value  string
	groups [][]operator
}

type operator struct {
	column string
	re     *regexp.Regexp
	invert bool
}

// ColumnRules maps column names to compiled rules.
type ColumnRules map[string]*ColumnRule

// CompileModifyColumns compiles every pattern once.
func CompileModifyColumns(list ModifyColumnList) (ColumnRules, error) {
	if len(list) == 0 {
		return nil, nil
	}

	rules := make(ColumnRules, len(list))

	for column, mc := range list {
		rule := &ColumnRule{
			Value:  mc.Value,
			groups: make([][]operator, 0, len(mc.Match)),
		}

		for _, match := range mc.Match {
			group := make([]operator, 0, len(match.Operators))

			for _, op := range match.Operators {
				re, err := regexp.Compile(`^(?:` + op.Pattern + `)$`)
				if err != nil {
					return nil, errors.Wrapf(ErrInvalidModifyPattern, "column %s, pattern %q: %s", column, op.Pattern, err)
				}

				group = append(group, operator{
					column: op.Column,
					re:     re,
					invert: op.Behaviour,
				})
			}

			rule.groups = append(rule.groups, group)
		}

		rules[column] = rule
	}

	return rules, nil
}

// Fires reports whether the rule applies to row. A rule without match
// groups always fires.
func (rule *ColumnRule) Fires(row Row) bool {
	if len(rule.groups) == 0 {
		return true
	}

	for _, group := range rule.groups {
		if groupMatches(group, row) {
			return true
		}
	}

	return false
}

func groupMatches(group []operator, row Row) bool {
	for _, op := range group {
		if op.matches(row) == op.invert {
			return false
		}
	}

	return true
}

// NULL and missing values never match a pattern.
func (op operator) matches(row Row) bool {
	v, ok := row[op.column]
	if !ok || !v.Valid {
		return false
	}

	return op.re.MatchString(v.String)
}

// Substitute returns the replacement literal for column when its rule fires.
func (rules ColumnRules) Substitute(column string, row Row) (string, bool) {
	rule, ok := rules[column]
	if !ok {
		return "", false
	}

	if !rule.Fires(row) {
		return "", false
	}

	return rule.Value, true
}
