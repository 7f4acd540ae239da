package shellquote

import "strings"

type posixEscaper struct{}

func (posixEscaper) Family() Family { return FamilyPOSIX }

// QuoteArg single-quotes the argument, closing and reopening the quote
// around embedded single quotes. This is the only POSIX quoting form with
// no expansions at all.
func (posixEscaper) QuoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !needsPOSIXQuoting(arg) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func (e posixEscaper) QuoteCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = e.QuoteArg(a)
	}
	return strings.Join(quoted, " ")
}

func needsPOSIXQuoting(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '/' || r == ':' || r == '=' || r == ',' || r == '+' || r == '@' || r == '%':
		default:
			return true
		}
	}
	return false
}
