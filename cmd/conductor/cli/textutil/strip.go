// Package textutil provides terminal output filtering shared by the PTY
// spawner and the command runners.
package textutil

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// StripControlSequences removes ANSI CSI/OSC escape sequences and other
// terminal control bytes from s, leaving printable text and newlines.
// PTY output and shell-integration markers (window titles, OSC 133 prompt
// marks) are filtered through this before being forwarded as data events.
func StripControlSequences(s string) string {
	stripped := ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\t':
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, stripped)
}

// StripOSCSequences removes only OSC (window title, hyperlink, shell
// integration) sequences, preserving color and cursor CSI sequences. The
// command runners use this so captured output keeps its colors but loses
// terminal-integration noise.
func StripOSCSequences(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != 0x1b || i+1 >= len(s) || s[i+1] != ']' {
			b.WriteByte(c)
			continue
		}
		// Skip until ST (ESC \) or BEL, the two OSC terminators.
		j := i + 2
		for j < len(s) {
			if s[j] == 0x07 {
				break
			}
			if s[j] == 0x1b && j+1 < len(s) && s[j+1] == '\\' {
				j++
				break
			}
			j++
		}
		i = j
	}
	return b.String()
}

// SuppressEcho removes a leading echo of recently written input from a PTY
// output chunk. PTYs echo what the caller writes; forwarding the echo back
// produces duplicated text in the merged output view. Matching is
// prefix-based against the filtered chunk because the echo always arrives
// before the program's own output.
func SuppressEcho(chunk, lastInput string) string {
	if lastInput == "" {
		return chunk
	}
	trimmedInput := strings.TrimRight(lastInput, "\r\n")
	if trimmedInput == "" {
		return chunk
	}
	rest, ok := strings.CutPrefix(chunk, trimmedInput)
	if !ok {
		return chunk
	}
	return strings.TrimLeft(rest, "\r\n")
}
