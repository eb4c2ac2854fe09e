package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is how long a notification stays up before giving up.
const DefaultTimeout = 30 * time.Second

// Notifier shows a desktop notification. Failures are logged by the
// implementation and never reported to the caller.
type Notifier interface {
	Notify(ctx context.Context, title, body string)
}

// CommandRunner runs an external program and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// New returns the notifier for kind: "auto", "osascript", "notify-send" or
// "none". "auto" picks by operating system and falls back to Nop.
func New(kind, app string, timeout time.Duration, log *zap.Logger) (Notifier, error) {
	if kind == "auto" {
		switch runtime.GOOS {
		case "darwin":
			kind = "osascript"
		case "linux":
			kind = "notify-send"
		default:
			kind = "none"
		}
	}

	switch kind {
	case "osascript":
		return NewOSAScript(app, timeout, log), nil
	case "notify-send":
		return NewNotifySend(timeout, log), nil
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("notify: unsupported type %q", kind)
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) {}
