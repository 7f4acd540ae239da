// Package runner executes one-shot commands for the engine: locally
// through the user's login shell, or on a remote host through the system
// ssh binary. Runners stream data/stderr events and resolve with the
// command's exit code via a command-exit event.
package runner

import (
	"io"
	"sync"

	"github.com/entireio/conductor/cmd/conductor/cli/proc"
	"github.com/entireio/conductor/cmd/conductor/cli/textutil"
)

// pump forwards r to emit chunk by chunk, filtering OSC sequences so
// captured output keeps colors but loses window-title and shell
// integration noise. The raw text is also accumulated for classification.
func pump(r io.Reader, wg *sync.WaitGroup, accum *lockedBuffer, emit func(string)) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			text := string(buf[:n])
			accum.append(text)
			if filtered := textutil.StripOSCSequences(text); filtered != "" {
				emit(filtered)
			}
		}
		if err != nil {
			return
		}
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *lockedBuffer) append(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, s...)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func emitData(emit proc.EmitFunc, sessionID string) func(string) {
	return func(text string) {
		emit(proc.Event{Type: proc.EventData, SessionID: sessionID, Data: text})
	}
}

func emitStderr(emit proc.EmitFunc, sessionID string) func(string) {
	return func(text string) {
		emit(proc.Event{Type: proc.EventStderr, SessionID: sessionID, Data: text})
	}
}
