package shellquote

import "strings"

type cmdEscaper struct{}

func (cmdEscaper) Family() Family { return FamilyCmd }

// QuoteArg follows the MSVCRT argument parsing rules: backslashes are
// literal unless they precede a double quote, in which case they double.
// cmd.exe metacharacters are additionally caret-escaped.
func (cmdEscaper) QuoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if !strings.ContainsAny(arg, " \t\"&|<>^%()") {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')
	backslashes := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch c {
		case '\\':
			backslashes++
			continue
		case '"':
			b.WriteString(strings.Repeat(`\`, backslashes*2+1))
			backslashes = 0
			b.WriteByte('"')
		default:
			b.WriteString(strings.Repeat(`\`, backslashes))
			backslashes = 0
			b.WriteByte(c)
		}
	}
	b.WriteString(strings.Repeat(`\`, backslashes*2))
	b.WriteByte('"')
	return b.String()
}

func (e cmdEscaper) QuoteCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = e.QuoteArg(a)
	}
	return strings.Join(quoted, " ")
}

type powerShellEscaper struct{}

func (powerShellEscaper) Family() Family { return FamilyPowerShell }

// QuoteArg single-quotes for PowerShell, where the only escape inside
// single quotes is a doubled single quote.
func (powerShellEscaper) QuoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(arg, "'", "''") + "'"
}

func (e powerShellEscaper) QuoteCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = e.QuoteArg(a)
	}
	return strings.Join(quoted, " ")
}

func detectFamily(shell string) Family {
	name := strings.ToLower(shell)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".exe")
	switch name {
	case "cmd":
		return FamilyCmd
	case "powershell", "pwsh":
		return FamilyPowerShell
	default:
		return FamilyPOSIX
	}
}
