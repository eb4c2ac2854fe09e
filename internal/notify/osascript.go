package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// processGrace is added to the dialog timeout to bound the osascript process.
const processGrace = 5 * time.Second

// OSAScript shows a macOS dialog with a button that brings the chat app to
// the front.
type OSAScript struct {
	app     string
	timeout time.Duration
	run     CommandRunner
	log     *zap.Logger
}

func NewOSAScript(app string, timeout time.Duration, log *zap.Logger) *OSAScript {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OSAScript{app: app, timeout: timeout, run: execRunner{}, log: log}
}

func (n *OSAScript) Notify(ctx context.Context, title, body string) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout+processGrace)
	defer cancel()

	out, err := n.run.Run(ctx, "osascript", "-e", n.script(title, body))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			n.log.Info("Desktop notification displayed (timed out)")
			return
		}
		n.log.Warn("Could not send desktop notification", zap.Error(err))
		return
	}

	if strings.Contains(out, n.openButton()) {
		if _, err := n.run.Run(context.WithoutCancel(ctx), "open", "-a", n.app); err != nil {
			n.log.Warn("Could not open app", zap.String("app", n.app), zap.Error(err))
		}
	}
	n.log.Info("Desktop notification sent")
}

func (n *OSAScript) openButton() string {
	return "Open " + n.app
}

func (n *OSAScript) script(title, body string) string {
	button := escapeAppleScript(n.openButton())
	return fmt.Sprintf(`display dialog "%s" with title "%s" buttons {"%s", "OK"} default button "%s" giving up after %d`,
		escapeAppleScript(body), escapeAppleScript(title), button, button, int(n.timeout/time.Second))
}

// escapeAppleScript escapes s for use inside an AppleScript string literal.
func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
