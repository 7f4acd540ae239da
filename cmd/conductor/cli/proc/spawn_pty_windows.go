//go:build windows

package proc

import (
	"context"
	"fmt"
	"os"
)

func (m *Manager) startPTY(ctx context.Context, p *ManagedProcess) error {
	return fmt.Errorf("pty sessions are not supported on windows")
}

func resizePTY(f *os.File, cols, rows uint16) error {
	return fmt.Errorf("pty sessions are not supported on windows")
}
