package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdoutPublisher prints the digest instead of delivering it.
type StdoutPublisher struct {
	w io.Writer
}

func NewStdoutPublisher() *StdoutPublisher {
	return &StdoutPublisher{w: os.Stdout}
}

func (p *StdoutPublisher) Name() string { return "stdout" }

func (p *StdoutPublisher) Publish(_ context.Context, text string) error {
	rule := strings.Repeat("=", 72)
	if _, err := fmt.Fprintf(p.w, "%s\n%s\n%s\n", rule, strings.TrimRight(text, "\n"), rule); err != nil {
		return fmt.Errorf("stdout: failed to write digest: %w", err)
	}
	return nil
}
