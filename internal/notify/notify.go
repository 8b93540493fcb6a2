// Package notify sends desktop notifications. All sends are best-effort;
// callers log and swallow failures.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// OS name constants used for runtime.GOOS comparisons.
const (
	osDarwin  = "darwin"
	osLinux   = "linux"
	osWindows = "windows"
)

// Notifier dispatches desktop alerts through the platform's native tooling.
type Notifier struct {
	enabled bool
	appName string
}

// New creates a notifier.
func New(enabled bool, appName string) *Notifier {
	if appName == "" {
		appName = "Codedesk"
	}
	return &Notifier{enabled: enabled, appName: appName}
}

// Available reports whether a notification mechanism exists on this host.
func (n *Notifier) Available() bool {
	if !n.enabled {
		return false
	}
	switch runtime.GOOS {
	case osDarwin:
		return true
	case osWindows:
		_, err := exec.LookPath("powershell.exe")
		return err == nil
	case osLinux:
		if _, err := exec.LookPath("notify-send"); err == nil {
			return true
		}
		if _, err := exec.LookPath("zenity"); err == nil {
			return true
		}
		return false
	default:
		return false
	}
}

// Send shows a desktop notification.
func (n *Notifier) Send(ctx context.Context, title, body string) error {
	if !n.enabled {
		return nil
	}
	switch runtime.GOOS {
	case osDarwin:
		script := fmt.Sprintf("display notification %q with title %q subtitle %q",
			body, n.appName, title)
		return exec.CommandContext(ctx, "osascript", "-e", script).Run()
	case osLinux:
		if _, err := exec.LookPath("notify-send"); err == nil {
			return exec.CommandContext(ctx, "notify-send", "--app-name", n.appName, title, body).Run()
		}
		if _, err := exec.LookPath("zenity"); err == nil {
			text := strings.TrimSpace(title + "\n" + body)
			return exec.CommandContext(ctx, "zenity", "--notification", "--text", text).Run()
		}
		return fmt.Errorf("no notification mechanism available")
	default:
		return fmt.Errorf("notifications not supported on %s", runtime.GOOS)
	}
}
