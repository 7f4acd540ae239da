//go:build windows

package shellquote

func defaultEscaper() Escaper { return cmdEscaper{} }
