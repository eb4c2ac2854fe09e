package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/slack-digest/internal/digest"
	"github.com/ryosukesatoh/slack-digest/internal/fetcher"
	"github.com/ryosukesatoh/slack-digest/internal/metrics"
	"github.com/ryosukesatoh/slack-digest/internal/notify"
	"github.com/ryosukesatoh/slack-digest/internal/publisher"
)

// NotifyTitle is the title of the desktop notification sent after each run.
const NotifyTitle = "Slack Daily Digest Ready! 📬"

// Summarizer turns a prompt into digest text. It reports failures inside
// the returned text.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) string
}

// Report describes the outcome of one run.
type Report struct {
	RunID            string
	StartedAt        time.Time
	Text             string // final message: header followed by digest
	MessageCount     int
	ChannelCount     int
	Summarized       bool // false when the backend was skipped
	MissingCitations int
}

// Runner orchestrates the fetch -> format -> summarize -> deliver pipeline.
type Runner struct {
	channels   []string
	lookback   time.Duration
	fetcher    fetcher.Fetcher
	summarizer Summarizer
	publishers []publisher.Publisher
	notifier   notify.Notifier

	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Runner)

func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) { r.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides the time source used for the header date.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func New(channels []string, lookback time.Duration, f fetcher.Fetcher, s Summarizer, pubs []publisher.Publisher, n notify.Notifier, opts ...Option) *Runner {
	r := &Runner{
		channels:   channels,
		lookback:   lookback,
		fetcher:    f,
		summarizer: s,
		publishers: pubs,
		notifier:   n,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = notify.Nop{}
	}
	return r
}

// Run executes the full pipeline once. It never fails: every stage degrades
// and the run always ends with delivery and a notification.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:        uuid.NewString(),
		StartedAt:    r.now(),
		ChannelCount: len(r.channels),
	}
	log := r.log.With(zap.String("run_id", report.RunID))
	r.metrics.RunStarted()

	log.Info("Starting Slack digest",
		zap.Duration("lookback", r.lookback),
		zap.Int("channels", len(r.channels)))

	// Step 1: Fetch messages, one channel at a time
	var messages []fetcher.Message
	for _, id := range r.channels {
		got := r.fetcher.Fetch(ctx, id, r.lookback)
		log.Info("Fetched channel", zap.String("channel", id), zap.Int("count", len(got)))
		r.metrics.MessagesFetched(id, len(got))
		messages = append(messages, got...)
	}
	report.MessageCount = len(messages)
	log.Info("Collected messages", zap.Int("count", report.MessageCount))

	// Step 2: Summarize
	prompt, ok := digest.BuildPrompt(messages, r.lookback)
	summary := prompt
	if ok {
		log.Info("Analyzing messages")
		start := time.Now()
		summary = r.summarizer.Summarize(ctx, prompt)
		r.metrics.Summarized(time.Since(start))
		report.Summarized = true

		missing := digest.MissingCitations(summary)
		report.MissingCitations = len(missing)
		r.metrics.MissingCitations(len(missing))
		if len(missing) > 0 {
			log.Warn("Digest has bullets without links",
				zap.Int("count", len(missing)),
				zap.Strings("lines", missing))
		}
	}

	header := digest.Header(r.now(), report.MessageCount, report.ChannelCount)
	report.Text = digest.Compose(header, summary)

	// Step 3: Deliver. A failing publisher never stops the others.
	for _, pub := range r.publishers {
		if err := pub.Publish(ctx, report.Text); err != nil {
			r.metrics.PublishFailed(pub.Name())
			log.Error("Error sending digest", zap.String("publisher", pub.Name()), zap.Error(err))
			continue
		}
		log.Debug("Published digest", zap.String("publisher", pub.Name()))
	}

	r.notifier.Notify(ctx, NotifyTitle, NotifyBody(report.MessageCount, report.ChannelCount))

	r.metrics.RunFinished(r.now(), report.MessageCount)
	log.Info("Digest complete", zap.Int("count", report.MessageCount))
	return report
}

// NotifyBody is the desktop notification text for a run.
func NotifyBody(messageCount, channelCount int) string {
	return fmt.Sprintf("Analyzed %d messages from %d channel(s). Check your Slack DMs!", messageCount, channelCount)
}
