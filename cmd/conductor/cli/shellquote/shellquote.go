// Package shellquote isolates platform-specific shell escaping behind a
// single capability interface. The engine never branches on GOOS at call
// sites; it asks the Escaper selected at startup.
package shellquote

// Family identifies the shell dialect an Escaper targets.
type Family string

const (
	FamilyPOSIX      Family = "posix"
	FamilyCmd        Family = "cmd"
	FamilyPowerShell Family = "powershell"
)

// Escaper quotes arguments and commands for one shell family.
type Escaper interface {
	// Family returns the shell dialect this escaper targets.
	Family() Family

	// QuoteArg quotes a single argument so the shell treats it as one word
	// with no expansions.
	QuoteArg(arg string) string

	// QuoteCommand joins argv into a single command string safe to hand to
	// the shell's command flag (-c, /C, -Command).
	QuoteCommand(argv []string) string
}

// ForShell returns the Escaper for a shell binary path or name.
// Unrecognized shells get the POSIX escaper, which is correct for every
// sh-compatible shell (bash, zsh, dash, fish quoting differs only in
// corner cases the engine does not hit).
func ForShell(shell string) Escaper {
	switch detectFamily(shell) {
	case FamilyCmd:
		return cmdEscaper{}
	case FamilyPowerShell:
		return powerShellEscaper{}
	default:
		return posixEscaper{}
	}
}

// Default returns the escaper for the current platform's default shell.
func Default() Escaper {
	return defaultEscaper()
}
