package textutil

import "testing"

func TestStripControlSequences(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"color codes", "\x1b[31mred\x1b[0m text", "red text"},
		{"cursor movement", "\x1b[2Jcleared\x1b[1;1H", "cleared"},
		{"window title", "\x1b]0;my title\x07prompt$ ", "prompt$ "},
		{"keeps newlines", "line1\nline2\n", "line1\nline2\n"},
		{"strips carriage returns", "spinner\rdone", "spinnerdone"},
		{"empty after filtering", "\x1b[?25l\x1b[?25h", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := StripControlSequences(tc.in); got != tc.want {
				t.Errorf("StripControlSequences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStripOSCSequences(t *testing.T) {
	t.Parallel()

	in := "\x1b]0;title\x07\x1b[32mok\x1b[0m\x1b]133;A\x1b\\$ "
	want := "\x1b[32mok\x1b[0m$ "
	if got := StripOSCSequences(in); got != want {
		t.Errorf("StripOSCSequences(%q) = %q, want %q", in, got, want)
	}
}

func TestStripOSCSequencesUnterminated(t *testing.T) {
	t.Parallel()

	// An unterminated OSC swallows the rest of the chunk rather than leaking
	// raw escape bytes into the data stream.
	if got := StripOSCSequences("before\x1b]0;partial"); got != "before" {
		t.Errorf("got %q, want %q", got, "before")
	}
}

func TestSuppressEcho(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		chunk     string
		lastInput string
		want      string
	}{
		{"echo removed", "ls -la\r\ntotal 4", "ls -la\n", "total 4"},
		{"no echo present", "total 4", "ls -la\n", "total 4"},
		{"no input recorded", "anything", "", "anything"},
		{"pure echo", "ls -la\r\n", "ls -la\n", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SuppressEcho(tc.chunk, tc.lastInput); got != tc.want {
				t.Errorf("SuppressEcho(%q, %q) = %q, want %q", tc.chunk, tc.lastInput, got, tc.want)
			}
		})
	}
}
