package dump

import "strings"

// Escape escapes a string for use inside a single-quoted MySQL literal.
func Escape(str string) string {
	var (
		esc  string
		buf  strings.Builder
		last int
	)

	buf.Grow(len(str))

	for i := 0; i < len(str); i++ {
		switch str[i] {
		case 0: /* Must be escaped for 'mysql' */
			esc = `\0`
		case '\n': /* Must be escaped for logs */
			esc = `\n`
		case '\r':
			esc = `\r`
		case '\\':
			esc = `\\`
		case '\'':
			esc = `\'`
		case '"': /* Better safe than sorry */
			esc = `\"`
		case '\032': /* This gives problems on Win32 */
			esc = `\Z`
		default:
			continue
		}

		buf.WriteString(str[last:i])
		buf.WriteString(esc)
		last = i + 1
	}

	buf.WriteString(str[last:])

	return buf.String()
}

// Quote escapes str and wraps it in single quotes.
func Quote(str string) string {
	return "'" + Escape(str) + "'"
}
