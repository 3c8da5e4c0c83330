package output

import (
	"io"
	"strings"

	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/pkg/errors"
)

const sectionSeparator = "\n"

// Header prepares a session for replay: utf8mb4 literals, no foreign key or
// unique checks, and explicit zero ids kept in AUTO_INCREMENT columns.
const Header = "SET @OLD_CHARACTER_SET_CLIENT=@@CHARACTER_SET_CLIENT;\n" +
	"SET @OLD_CHARACTER_SET_RESULTS=@@CHARACTER_SET_RESULTS;\n" +
	"SET @OLD_COLLATION_CONNECTION=@@COLLATION_CONNECTION;\n" +
	"SET NAMES utf8mb4;\n" +
	"SET @OLD_UNIQUE_CHECKS=@@UNIQUE_CHECKS, UNIQUE_CHECKS=0;\n" +
	"SET @OLD_FOREIGN_KEY_CHECKS=@@FOREIGN_KEY_CHECKS, FOREIGN_KEY_CHECKS=0;\n" +
	"SET @OLD_SQL_MODE=@@SQL_MODE, SQL_MODE='NO_AUTO_VALUE_ON_ZERO';\n\n"

// Footer restores the session variables changed by Header.
const Footer = "\nSET SQL_MODE=@OLD_SQL_MODE;\n" +
	"SET FOREIGN_KEY_CHECKS=@OLD_FOREIGN_KEY_CHECKS;\n" +
	"SET UNIQUE_CHECKS=@OLD_UNIQUE_CHECKS;\n" +
	"SET CHARACTER_SET_CLIENT=@OLD_CHARACTER_SET_CLIENT;\n" +
	"SET CHARACTER_SET_RESULTS=@OLD_CHARACTER_SET_RESULTS;\n" +
	"SET COLLATION_CONNECTION=@OLD_COLLATION_CONNECTION;\n"

// WriteDump writes the schema, data and trigger sections of a dump in this
// order between Header and Footer, skipping null and empty sections.
// It returns the number of bytes written.
func WriteDump(w io.Writer, result *dump.DumpReturn) (int64, error) {
	n, err := io.WriteString(w, Header)
	written := int64(n)

	if err != nil {
		return written, errors.Wrap(err, "unable to write header")
	}

	var body int64

	sections := []struct {
		name string
		text string
	}{
		{name: "schema", text: result.Dump.Schema.String},
		{name: "data", text: result.Dump.Data.String},
		{name: "trigger", text: result.Dump.Trigger.String},
	}

	for _, section := range sections {
		if section.text == "" {
			continue
		}

		if body > 0 {
			n, err := io.WriteString(w, sectionSeparator)
			written += int64(n)

			if err != nil {
				return written, errors.Wrap(err, "unable to write dump")
			}
		}

		n, err := io.WriteString(w, section.text)
		written += int64(n)
		body += int64(n)

		if err != nil {
			return written, errors.Wrapf(err, "unable to write %s section", section.name)
		}
	}

	n, err = io.WriteString(w, Footer)
	written += int64(n)

	if err != nil {
		return written, errors.Wrap(err, "unable to write footer")
	}

	return written, nil
}

// WriteTable writes the fragments of one table, between Header and Footer,
// into its own file of dir.
func WriteTable(dir *DirWriter, table *dump.Table) error {
	var fragments []string

	if table.Schema.Valid && table.Schema.String != "" {
		fragments = append(fragments, table.Schema.String)
	}

	if table.Data.Valid && table.Data.String != "" {
		fragments = append(fragments, table.Data.String)
	}

	fragments = append(fragments, table.Triggers...)

	if len(fragments) == 0 {
		return nil
	}

	return dir.WriteFile(table.Name, Header+strings.Join(fragments, "\n\n")+"\n"+Footer)
}
