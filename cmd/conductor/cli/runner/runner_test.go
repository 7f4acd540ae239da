//go:build !windows

package runner

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entireio/conductor/cmd/conductor/cli/proc"
)

type eventLog struct {
	mu     sync.Mutex
	events []proc.Event
}

func (l *eventLog) emit(ev proc.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []proc.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]proc.Event(nil), l.events...)
}

func (l *eventLog) joined(et proc.EventType) string {
	var b strings.Builder
	for _, ev := range l.all() {
		if ev.Type == et {
			b.WriteString(ev.Data)
		}
	}
	return b.String()
}

func TestLocalRunStreamsBothChannels(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	r := &Local{Shell: "/bin/sh"}
	code, err := r.Run(context.Background(), "cmd-1", "printf out; printf err >&2", "", log.emit)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Contains(t, log.joined(proc.EventData), "out")
	assert.Contains(t, log.joined(proc.EventStderr), "err")

	events := log.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, proc.EventCommandExit, last.Type)
	assert.Equal(t, 0, last.ExitCode)
}

func TestLocalRunReportsExitCode(t *testing.T) {
	t.Parallel()

	log := &eventLog{}
	r := &Local{Shell: "/bin/sh"}
	code, err := r.Run(context.Background(), "cmd-2", "exit 7", "", log.emit)
	require.NoError(t, err, "a failing command is not a runner error")
	assert.Equal(t, 7, code)

	events := log.all()
	last := events[len(events)-1]
	assert.Equal(t, proc.EventCommandExit, last.Type)
	assert.Equal(t, 7, last.ExitCode)
}

func TestLocalRunEntersWorkingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	log := &eventLog{}
	r := &Local{Shell: "/bin/sh"}
	code, err := r.Run(context.Background(), "cmd-3", "pwd", dir, log.emit)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, log.joined(proc.EventData), filepath.Base(dir))
}

func TestSSHArgsAssembly(t *testing.T) {
	t.Parallel()

	r := &SSH{Host: "build-host", User: "deploy", Port: 2222, IdentityFile: "/keys/id_ed25519"}
	args := r.args("make test", "/srv/my app")

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-o BatchMode=yes")
	assert.Contains(t, joined, "-p 2222")
	assert.Contains(t, joined, "-i /keys/id_ed25519")

	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, "deploy@build-host", args[len(args)-2])
	assert.Equal(t, "cd '/srv/my app' && make test", args[len(args)-1])
}

func TestSSHArgsWithoutUserOrCwd(t *testing.T) {
	t.Parallel()

	r := &SSH{Host: "build-host"}
	args := r.args("uptime", "")

	assert.Equal(t, "build-host", args[len(args)-2])
	assert.Equal(t, "uptime", args[len(args)-1], "no cwd means no cd wrapper")
}
