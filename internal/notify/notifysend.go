package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NotifySend shows a freedesktop notification through notify-send.
type NotifySend struct {
	timeout time.Duration
	run     CommandRunner
	log     *zap.Logger
}

func NewNotifySend(timeout time.Duration, log *zap.Logger) *NotifySend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &NotifySend{timeout: timeout, run: execRunner{}, log: log}
}

func (n *NotifySend) Notify(ctx context.Context, title, body string) {
	ctx, cancel := context.WithTimeout(ctx, processGrace)
	defer cancel()

	_, err := n.run.Run(ctx, "notify-send",
		"--app-name=slack-digest",
		fmt.Sprintf("--expire-time=%d", n.timeout.Milliseconds()),
		title, body)
	if err != nil {
		n.log.Warn("Could not send desktop notification", zap.Error(err))
		return
	}
	n.log.Info("Desktop notification sent")
}
