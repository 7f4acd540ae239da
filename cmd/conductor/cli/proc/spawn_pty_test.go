//go:build !windows

package proc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

func TestPTYSessionStreamsFilteredOutput(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)

	cfg := ProcessConfig{
		SessionID: "pty-1",
		AgentType: agent.AgentTypeTerminal,
		Command:   "sh",
		Args:      []string{"-c", "printf 'hi-from-pty'"},
	}
	require.NoError(t, m.Spawn(context.Background(), cfg))
	assert.Equal(t, 0, c.waitExit(t))

	assert.Contains(t, c.joinedData(), "hi-from-pty")

	events := c.all()
	assert.Equal(t, EventExit, events[len(events)-1].Type)
}

func TestPTYResize(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)
	ctx := context.Background()

	cfg := ProcessConfig{
		SessionID: "pty-2",
		AgentType: agent.AgentTypeTerminal,
		Command:   "sleep",
		Args:      []string{"30"},
		Cols:      80,
		Rows:      24,
	}
	require.NoError(t, m.Spawn(ctx, cfg))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, m.Resize("pty-2", 120, 40))

	require.NoError(t, m.Kill(ctx, "pty-2"))
	c.waitExit(t)
}

func TestPTYInterruptNeverEscalatesToKill(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)
	ctx := context.Background()

	// A terminal whose foreground program ignores SIGINT stays alive; an
	// ignored Ctrl-C must not cost the user their whole terminal.
	cfg := ProcessConfig{
		SessionID:      "pty-int-1",
		AgentType:      agent.AgentTypeTerminal,
		Command:        "sh",
		Args:           []string{"-c", `trap '' INT; while :; do sleep 0.1; done`},
		InterruptGrace: 200 * time.Millisecond,
	}
	require.NoError(t, m.Spawn(ctx, cfg))
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, m.Interrupt(ctx, "pty-int-1"))

	select {
	case code := <-c.exited:
		t.Fatalf("terminal session was killed after the grace window (exit code %d)", code)
	case <-time.After(800 * time.Millisecond):
	}
	_, active := m.Get("pty-int-1")
	assert.True(t, active, "terminal session must survive an ignored interrupt")

	require.NoError(t, m.Kill(ctx, "pty-int-1"))
	c.waitExit(t)
}

func TestResizeRejectsPipeSessions(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)
	ctx := context.Background()

	cfg := ProcessConfig{
		SessionID: "pipe-1",
		AgentType: fakeAgent,
		Command:   "sleep",
		Args:      []string{"30"},
	}
	require.NoError(t, m.Spawn(ctx, cfg))

	assert.Error(t, m.Resize("pipe-1", 120, 40))

	require.NoError(t, m.Kill(ctx, "pipe-1"))
	c.waitExit(t)
}
