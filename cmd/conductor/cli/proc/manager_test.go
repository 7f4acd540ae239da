//go:build !windows

package proc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

// collector records every emitted event in order and signals exit.
type collector struct {
	mu     sync.Mutex
	events []Event
	exited chan int
}

func newCollector() *collector {
	return &collector{exited: make(chan int, 8)}
}

func (c *collector) emit(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	if ev.Type == EventExit {
		c.exited <- ev.ExitCode
	}
}

func (c *collector) waitExit(t *testing.T) int {
	t.Helper()
	select {
	case code := <-c.exited:
		return code
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for exit event")
		return 0
	}
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *collector) byType(et EventType) []Event {
	var out []Event
	for _, ev := range c.all() {
		if ev.Type == et {
			out = append(out, ev)
		}
	}
	return out
}

func (c *collector) joinedData() string {
	var b strings.Builder
	for _, ev := range c.byType(EventData) {
		b.WriteString(ev.Data)
	}
	return b.String()
}

// fakeAgent is an unregistered type, so the manager degrades to the
// generic fallback parser in batch mode.
const fakeAgent agent.AgentType = "fake-agent"

func TestBatchSessionFullFlow(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)

	doc := `{"result":"done","session_id":"abc","usage":{"input_tokens":3,"output_tokens":2},"total_cost_usd":0.5}`
	cfg := ProcessConfig{
		SessionID: "batch-1",
		AgentType: fakeAgent,
		Command:   "sh",
		Args:      []string{"-c", "printf '%s' '" + doc + "'"},
		Prompt:    "summarize the repo",
	}
	require.NoError(t, m.Spawn(context.Background(), cfg))
	require.Equal(t, 0, c.waitExit(t))

	sessions := c.byType(EventSessionID)
	require.Len(t, sessions, 1)
	assert.Equal(t, "abc", sessions[0].AgentSessionID)

	usage := c.byType(EventUsage)
	require.Len(t, usage, 1)
	assert.Equal(t, int64(3), usage[0].Usage.InputTokens)
	assert.Equal(t, int64(2), usage[0].Usage.OutputTokens)
	assert.Equal(t, 0.5, usage[0].Usage.TotalCostUSD)
	assert.Equal(t, int64(agent.DefaultContextWindow), usage[0].Usage.ContextWindow)

	assert.Contains(t, c.joinedData(), "done")

	complete := c.byType(EventQueryComplete)
	require.Len(t, complete, 1)
	assert.GreaterOrEqual(t, complete[0].DurationMS, int64(0))

	events := c.all()
	assert.Equal(t, EventExit, events[len(events)-1].Type, "exit event must be last")

	_, active := m.Get("batch-1")
	assert.False(t, active, "record must be removed after exit")
}

func TestStreamTrailingLineParsedAtExit(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)

	// Two protocol lines, the second without a trailing newline. The
	// trailing "stream-json" argument only serves the argv sniff.
	script := `printf '{"type":"note","session_id":"sid-1","text":"partial"}\n{"result":"final","session_id":"sid-2"}'`
	cfg := ProcessConfig{
		SessionID: "stream-1",
		AgentType: fakeAgent,
		Command:   "sh",
		Args:      []string{"-c", script, "stream-json"},
	}
	require.NoError(t, m.Spawn(context.Background(), cfg))
	require.Equal(t, 0, c.waitExit(t))

	sessions := c.byType(EventSessionID)
	require.Len(t, sessions, 1, "session-id must be emitted at most once")
	assert.Equal(t, "sid-1", sessions[0].AgentSessionID)

	data := c.joinedData()
	assert.Contains(t, data, "partial")
	assert.Contains(t, data, "final", "unterminated trailing line must not be lost")

	events := c.all()
	assert.Equal(t, EventExit, events[len(events)-1].Type)
}

func TestExitClassificationGatedOnExitCode(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)

	cfg := ProcessConfig{
		SessionID: "clean-1",
		AgentType: fakeAgent,
		Command:   "sh",
		Args:      []string{"-c", "echo boom >&2; exit 0"},
	}
	require.NoError(t, m.Spawn(context.Background(), cfg))
	require.Equal(t, 0, c.waitExit(t))

	assert.Empty(t, c.byType(EventAgentError), "exit 0 must never classify")
	stderrs := c.byType(EventStderr)
	require.NotEmpty(t, stderrs)
	assert.Contains(t, stderrs[0].Data, "boom")
}

func TestNonZeroExitClassifies(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)

	cfg := ProcessConfig{
		SessionID: "crash-1",
		AgentType: fakeAgent,
		Command:   "sh",
		Args:      []string{"-c", "echo boom >&2; exit 3"},
	}
	require.NoError(t, m.Spawn(context.Background(), cfg))
	require.Equal(t, 3, c.waitExit(t))

	errs := c.byType(EventAgentError)
	require.Len(t, errs, 1)
	assert.Equal(t, agent.ErrAgentCrashed, errs[0].Err.Tag)
	assert.Contains(t, errs[0].Err.Message, "boom")
	assert.Equal(t, 3, errs[0].Err.ExitCode)
}

func TestSpawnFailureEmitsSyntheticSequence(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)

	cfg := ProcessConfig{
		SessionID: "missing-1",
		AgentType: fakeAgent,
		Command:   "/nonexistent/definitely-not-a-binary",
	}
	require.Error(t, m.Spawn(context.Background(), cfg))
	require.Equal(t, -1, c.waitExit(t))

	types := make([]EventType, 0)
	for _, ev := range c.all() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventAgentError, EventData, EventExit}, types)

	_, active := m.Get("missing-1")
	assert.False(t, active)
}

func TestKillFlushesBufferedOutputBeforeExit(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)
	ctx := context.Background()

	cfg := ProcessConfig{
		SessionID: "cat-1",
		AgentType: fakeAgent,
		Command:   "cat",
	}
	require.NoError(t, m.Spawn(ctx, cfg))
	require.NoError(t, m.Write("cat-1", "hello\n"))

	// Give cat a moment to echo before the kill.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, m.Kill(ctx, "cat-1"))
	require.Equal(t, -1, c.waitExit(t))

	events := c.all()
	dataIdx, exitIdx := -1, -1
	for i, ev := range events {
		if ev.Type == EventData && strings.Contains(ev.Data, "hello") && dataIdx < 0 {
			dataIdx = i
		}
		if ev.Type == EventExit {
			exitIdx = i
		}
	}
	require.GreaterOrEqual(t, dataIdx, 0, "buffered output must not be lost on kill")
	assert.Less(t, dataIdx, exitIdx, "data must flush before the exit event")
}

func TestInterruptGracefulExitCancelsEscalation(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)
	ctx := context.Background()

	cfg := ProcessConfig{
		SessionID:      "sleep-1",
		AgentType:      fakeAgent,
		Command:        "sleep",
		Args:           []string{"30"},
		InterruptGrace: 20 * time.Second,
	}
	require.NoError(t, m.Spawn(ctx, cfg))
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	require.NoError(t, m.Interrupt(ctx, "sleep-1"))
	c.waitExit(t)

	// A cooperative process dies well inside the grace period.
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestInterruptEscalatesToKillAfterGrace(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)
	ctx := context.Background()

	cfg := ProcessConfig{
		SessionID:      "stubborn-1",
		AgentType:      fakeAgent,
		Command:        "sh",
		Args:           []string{"-c", `trap '' INT; while :; do sleep 0.1; done`},
		InterruptGrace: 300 * time.Millisecond,
	}
	require.NoError(t, m.Spawn(ctx, cfg))
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, m.Interrupt(ctx, "stubborn-1"))
	code := c.waitExit(t)
	assert.Equal(t, -1, code, "escalation must kill a process that ignores the interrupt")
}

func TestKillDoesNotClassifyAsFailure(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)
	ctx := context.Background()

	cfg := ProcessConfig{
		SessionID: "teardown-1",
		AgentType: fakeAgent,
		Command:   "sleep",
		Args:      []string{"30"},
	}
	require.NoError(t, m.Spawn(ctx, cfg))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, m.Kill(ctx, "teardown-1"))
	require.Equal(t, -1, c.waitExit(t))

	assert.Empty(t, c.byType(EventAgentError), "a deliberate kill is teardown, not a crash")
}

func TestEmptyResultLeavesClaimForTrailingLine(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)

	// The first result line carries no text; the real result follows
	// without a trailing newline.
	script := `printf '{"result":"","session_id":"sid-9"}\n{"result":"final answer"}'`
	cfg := ProcessConfig{
		SessionID: "empty-result-1",
		AgentType: fakeAgent,
		Args:      []string{"-c", script, "stream-json"},
		Command:   "sh",
	}
	require.NoError(t, m.Spawn(context.Background(), cfg))
	require.Equal(t, 0, c.waitExit(t))

	assert.Contains(t, c.joinedData(), "final answer",
		"an empty result must not consume the one-shot result slot")
}

func TestStreamInputMessageCarriesImages(t *testing.T) {
	t.Parallel()

	img := filepath.Join(t.TempDir(), "shot.png")
	payload := []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, os.WriteFile(img, payload, 0o600))

	msg, err := streamInputMessage("describe this", []string{img})
	require.NoError(t, err)

	var decoded struct {
		Type    string `json:"type"`
		Message struct {
			Content []struct {
				Type   string `json:"type"`
				Text   string `json:"text"`
				Source struct {
					MediaType string `json:"media_type"`
					Data      string `json:"data"`
				} `json:"source"`
			} `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(msg, &decoded))
	assert.Equal(t, "user", decoded.Type)
	require.Len(t, decoded.Message.Content, 2)
	assert.Equal(t, "image", decoded.Message.Content[0].Type)
	assert.Equal(t, "image/png", decoded.Message.Content[0].Source.MediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), decoded.Message.Content[0].Source.Data)
	assert.Equal(t, "describe this", decoded.Message.Content[1].Text)
}

func TestSpawnRejectsAttachmentsWithoutChannel(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)

	// fakeAgent declares neither file attachments nor stream input, so
	// there is no channel that could carry the image.
	cfg := ProcessConfig{
		SessionID:   "attach-1",
		AgentType:   fakeAgent,
		Command:     "sleep",
		Args:        []string{"30"},
		Attachments: []string{"/tmp/shot.png"},
	}
	require.Error(t, m.Spawn(context.Background(), cfg))

	_, active := m.Get("attach-1")
	assert.False(t, active, "rejected spawn must not leave a session record")
}

func TestDuplicateSessionRejected(t *testing.T) {
	t.Parallel()

	c := newCollector()
	m := NewManager(c.emit)
	ctx := context.Background()

	cfg := ProcessConfig{
		SessionID: "dup-1",
		AgentType: fakeAgent,
		Command:   "sleep",
		Args:      []string{"60"},
	}
	require.NoError(t, m.Spawn(ctx, cfg))
	require.Error(t, m.Spawn(ctx, cfg))

	require.NoError(t, m.Kill(ctx, "dup-1"))
	c.waitExit(t)
}

func TestKillAllDrainsSessions(t *testing.T) {
	t.Parallel()

	c := newCollector()
	exits := make(chan int, 2)
	m := NewManager(func(ev Event) {
		c.emit(ev)
		if ev.Type == EventExit {
			exits <- ev.ExitCode
		}
	})
	ctx := context.Background()

	for _, id := range []string{"all-1", "all-2"} {
		require.NoError(t, m.Spawn(ctx, ProcessConfig{
			SessionID: id,
			AgentType: fakeAgent,
			Command:   "sleep",
			Args:      []string{"60"},
		}))
	}
	require.Len(t, m.Sessions(), 2)

	m.KillAll(ctx)
	for i := 0; i < 2; i++ {
		select {
		case <-exits:
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for killall exits")
		}
	}
	assert.Empty(t, m.Sessions())
}
