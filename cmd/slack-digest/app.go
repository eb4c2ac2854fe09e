package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/slack-digest/internal/chat"
	"github.com/ryosukesatoh/slack-digest/internal/config"
	"github.com/ryosukesatoh/slack-digest/internal/fetcher"
	"github.com/ryosukesatoh/slack-digest/internal/metrics"
	"github.com/ryosukesatoh/slack-digest/internal/notify"
	"github.com/ryosukesatoh/slack-digest/internal/publisher"
	"github.com/ryosukesatoh/slack-digest/internal/runner"
	"github.com/ryosukesatoh/slack-digest/internal/summarizer"
)

// app is the wired pipeline for one process.
type app struct {
	runner  *runner.Runner
	web     *publisher.WebPublisher
	metrics *metrics.Metrics
}

// newApp wires every component from cfg. In dry-run mode the digest is
// printed instead of sent and no desktop notification is shown.
func newApp(cfg *config.Config, log *zap.Logger, dryRun bool, chatOpts ...chat.Option) (*app, error) {
	client := chat.New(chat.Credentials{Token: cfg.Slack.Token, Cookie: cfg.Slack.Cookie}, chatOpts...)
	m := metrics.New()

	s, err := summarizer.New(cfg, log.Named("summarizer"))
	if err != nil {
		return nil, err
	}

	// Build publishers
	var pubs []publisher.Publisher
	if dryRun {
		pubs = append(pubs, publisher.NewStdoutPublisher())
	} else {
		pubs = append(pubs, publisher.NewDMPublisher(client, cfg.Slack.UserID, log.Named("dm")))
	}

	var web *publisher.WebPublisher
	if cfg.Web.Addr != "" {
		web = publisher.NewWebPublisher(cfg.Web.Addr, m.Gatherer(), log.Named("web"))
		pubs = append(pubs, web)
	}

	var n notify.Notifier = notify.Nop{}
	if !dryRun {
		n, err = notify.New(cfg.Notify.Type, cfg.Notify.App, cfg.Notify.Timeout, log.Named("notify"))
		if err != nil {
			return nil, fmt.Errorf("failed to build notifier: %w", err)
		}
	}

	r := runner.New(
		cfg.Slack.Channels,
		cfg.Lookback(),
		fetcher.NewSlackFetcher(client, log.Named("fetcher")),
		s,
		pubs,
		n,
		runner.WithLogger(log),
		runner.WithMetrics(m),
	)
	return &app{runner: r, web: web, metrics: m}, nil
}
