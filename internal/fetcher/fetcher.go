package fetcher

import (
	"context"
	"time"
)

// Message is one top-level channel message, with any thread replies
// flattened into Text.
type Message struct {
	Channel   string    // channel display name, without '#'
	Author    string    // display name of the poster
	Text      string    // body, followed by indented thread replies
	Timestamp string    // local time, TimestampLayout
	Permalink string    // web link to the message
	Posted    time.Time // parsed Slack ts
}

// Fetcher collects recent messages from a single channel.
//
// Fetch never fails: problems are logged and the channel contributes what
// could be collected, possibly nothing.
type Fetcher interface {
	Fetch(ctx context.Context, channelID string, lookback time.Duration) []Message
}
