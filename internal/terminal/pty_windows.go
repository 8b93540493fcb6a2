//go:build windows

package terminal

import (
	"fmt"
	"os/exec"
)

// startPTYWithSize is not implemented on Windows; the desktop shell runs its
// own ConPTY host there.
func startPTYWithSize(cmd *exec.Cmd, cols, rows int) (PtyHandle, error) {
	return nil, fmt.Errorf("pty terminals are not supported on windows")
}
