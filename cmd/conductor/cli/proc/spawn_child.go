package proc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
	"github.com/entireio/conductor/cmd/conductor/cli/envpath"
	"github.com/entireio/conductor/cmd/conductor/cli/logging"
	"github.com/entireio/conductor/cmd/conductor/cli/shellquote"
)

// startChild spawns a pipe-mode process: batch runs and interactive
// agents that do not want a terminal. Prompt delivery follows the agent's
// capability entry; stdin is closed after a batch prompt so the agent
// sees EOF.
func (m *Manager) startChild(ctx context.Context, p *ManagedProcess) error {
	cfg := p.cfg
	if cfg.Command == "" {
		return fmt.Errorf("agent %q requires a command", cfg.AgentType)
	}

	args := append([]string(nil), cfg.Args...)
	if p.caps.FileAttachments {
		// Attachment paths ride as trailing arguments ahead of the prompt.
		args = append(args, cfg.Attachments...)
	}
	if cfg.Prompt != "" && p.caps.PromptDelivery == agent.DeliverArgument {
		args = append(args, cfg.Prompt)
	}

	cmd := buildCommand(cfg.Command, args)
	cmd.Dir = cfg.Cwd
	cmd.Env = append(envpath.ChildEnv(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.stdin = stdin
	p.mu.Unlock()

	if cfg.Prompt != "" {
		if err := deliverPrompt(stdin, p.caps.PromptDelivery, cfg.Prompt, cfg.Attachments); err != nil {
			logging.Warn(ctx, "prompt delivery failed",
				"session_id", cfg.SessionID, "error", err.Error())
		}
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		readChunks(stdout, func(chunk []byte) { m.handleStdoutChunk(ctx, p, chunk) })
	}()
	go func() {
		defer readers.Done()
		readChunks(stderr, func(chunk []byte) { m.handleStderrChunk(ctx, p, chunk) })
	}()

	// Wait must run after both pipe readers finish, per os/exec's
	// StdoutPipe contract.
	go func() {
		readers.Wait()
		err := cmd.Wait()
		m.handleExit(ctx, p, exitCodeFromWait(err))
	}()

	return nil
}

// deliverPrompt writes a batch prompt on stdin and closes it. Argument
// delivery never reaches here; the prompt already rode on argv.
// Stream-protocol agents get image attachments inline as content blocks.
func deliverPrompt(stdin io.WriteCloser, delivery agent.PromptDelivery, prompt string, attachments []string) error {
	defer stdin.Close()
	switch delivery {
	case agent.DeliverStdinText:
		_, err := io.WriteString(stdin, prompt)
		return err
	case agent.DeliverStdinStream:
		msg, err := streamInputMessage(prompt, attachments)
		if err != nil {
			return err
		}
		_, err = stdin.Write(msg)
		return err
	default:
		return nil
	}
}

// streamInputMessage wraps text, plus any image attachments, as a
// stream-protocol user message, newline terminated. Images ride first so
// the text reads as commentary on them.
func streamInputMessage(text string, attachments []string) ([]byte, error) {
	content := make([]map[string]any, 0, len(attachments)+1)
	for _, path := range attachments {
		block, err := imageContentBlock(path)
		if err != nil {
			return nil, err
		}
		content = append(content, block)
	}
	content = append(content, map[string]any{"type": "text", "text": text})

	msg := map[string]any{
		"type": "user",
		"message": map[string]any{
			"role":    "user",
			"content": content,
		},
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input message: %w", err)
	}
	return append(encoded, '\n'), nil
}

var imageMediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// imageContentBlock reads an image file into a base64 content block.
func imageContentBlock(path string) (map[string]any, error) {
	mediaType, ok := imageMediaTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported attachment type %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return map[string]any{
		"type": "image",
		"source": map[string]any{
			"type":       "base64",
			"media_type": mediaType,
			"data":       base64.StdEncoding.EncodeToString(data),
		},
	}, nil
}

// buildCommand constructs the exec.Cmd, mediating through the platform
// shell on Windows where npm-installed CLIs are .cmd shims that
// CreateProcess cannot launch by bare name.
func buildCommand(name string, args []string) *exec.Cmd {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		esc := shellquote.Default()
		line := esc.QuoteCommand(append([]string{name}, args...))
		return exec.Command("cmd", "/d", "/c", line)
	}
	return exec.Command(name, args...)
}

// readChunks pumps r into handle until EOF or error.
func readChunks(r io.Reader, handle func([]byte)) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			handle(chunk)
		}
		if err != nil {
			return
		}
	}
}

// exitCodeFromWait maps cmd.Wait's error to an exit code. A signal kill
// reports -1, matching what callers see from a crashed process.
func exitCodeFromWait(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
