package proc

import (
	"strings"
	"sync"
	"time"
)

// dataBuffer coalesces small output chunks into fewer data events. Each
// append restarts the flush timer; a flush delivers the accumulated text
// through flushFn. Flush is idempotent: an empty buffer produces no event.
type dataBuffer struct {
	mu       sync.Mutex
	buf      strings.Builder
	timer    *time.Timer
	interval time.Duration
	flushFn  func(string)
	stopped  bool
}

func newDataBuffer(interval time.Duration, flushFn func(string)) *dataBuffer {
	return &dataBuffer{interval: interval, flushFn: flushFn}
}

// Append adds text and arms the flush timer.
func (b *dataBuffer) Append(s string) {
	if s == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.buf.WriteString(s)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.interval, b.Flush)
}

// Flush delivers buffered text immediately. Safe to call at any time,
// from the timer or from the exit sequence; concurrent calls deliver the
// text exactly once.
func (b *dataBuffer) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	text := b.buf.String()
	b.buf.Reset()
	b.mu.Unlock()

	if text != "" {
		b.flushFn(text)
	}
}

// Stop flushes pending text and refuses further appends. Called exactly
// once, at the end of the exit sequence, so late timer fires cannot emit
// after the exit event.
func (b *dataBuffer) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	b.Flush()
}
