package fetcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

const (
	// MaxHistory caps the number of messages requested per channel.
	MaxHistory = 1000
	// UnknownUser replaces author names that could not be resolved.
	UnknownUser = "Unknown User"
	// TimestampLayout is the format of Message.Timestamp.
	TimestampLayout = "2006-01-02 15:04"
)

// ChatClient is the subset of the Slack Web API the fetcher needs.
// *slack.Client satisfies it.
type ChatClient interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetTeamInfoContext(ctx context.Context) (*slack.TeamInfo, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
}

// SlackFetcher reads channel history through the Slack Web API.
type SlackFetcher struct {
	client ChatClient
	log    *zap.Logger
	now    func() time.Time
	loc    *time.Location

	// users memoizes successful display-name lookups for UserCacheTTL.
	users map[string]cachedUser
}

// UserCacheTTL bounds how long a resolved display name is reused.
const UserCacheTTL = time.Hour

type cachedUser struct {
	name    string
	fetched time.Time
}

type Option func(*SlackFetcher)

// WithClock overrides the time source used to compute the cutoff.
func WithClock(now func() time.Time) Option {
	return func(f *SlackFetcher) { f.now = now }
}

// WithLocation sets the zone Message.Timestamp is rendered in.
func WithLocation(loc *time.Location) Option {
	return func(f *SlackFetcher) { f.loc = loc }
}

func NewSlackFetcher(client ChatClient, log *zap.Logger, opts ...Option) *SlackFetcher {
	f := &SlackFetcher{
		client: client,
		log:    log,
		now:    time.Now,
		loc:    time.Local,
		users:  make(map[string]cachedUser),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the plain user messages posted in channelID within the
// lookback window, in the order the history API returns them. Any failure
// to read the channel is logged and yields an empty slice.
func (f *SlackFetcher) Fetch(ctx context.Context, channelID string, lookback time.Duration) []Message {
	cutoff := f.now().Add(-lookback)
	messages, err := f.fetch(ctx, channelID, cutoff)
	if err != nil {
		f.log.Error("Error fetching messages",
			zap.String("channel", channelID),
			zap.Error(err))
		return []Message{}
	}
	return messages
}

func (f *SlackFetcher) fetch(ctx context.Context, channelID string, cutoff time.Time) ([]Message, error) {
	history, err := f.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    FormatTimestamp(cutoff),
		Limit:     MaxHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher: history of %s: %w", channelID, err)
	}

	info, err := f.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return nil, fmt.Errorf("fetcher: info of %s: %w", channelID, err)
	}

	team, err := f.client.GetTeamInfoContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetcher: team info: %w", err)
	}

	messages := make([]Message, 0, len(history.Messages))
	for _, msg := range history.Messages {
		if msg.Type != "message" || msg.SubType != "" {
			continue
		}

		posted, err := ParseTimestamp(msg.Timestamp)
		if err != nil {
			f.log.Warn("Skipping message with unparsable timestamp",
				zap.String("channel", channelID),
				zap.String("ts", msg.Timestamp),
				zap.Error(err))
			continue
		}
		if posted.Before(cutoff) {
			continue
		}

		text := msg.Text
		if msg.ReplyCount > 0 {
			text += f.threadText(ctx, channelID, msg.Timestamp)
		}

		messages = append(messages, Message{
			Channel:   info.Name,
			Author:    f.userName(ctx, msg.User),
			Text:      text,
			Timestamp: posted.In(f.loc).Format(TimestampLayout),
			Permalink: Permalink(team.Domain, channelID, msg.Timestamp),
			Posted:    posted,
		})
	}

	f.log.Debug("Fetched channel history",
		zap.String("channel", channelID),
		zap.String("name", info.Name),
		zap.Int("total", len(history.Messages)),
		zap.Int("kept", len(messages)))

	return messages, nil
}

// threadText renders the replies to parentTS as indented lines. A failure
// is logged and yields "" so the parent is kept without its replies.
func (f *SlackFetcher) threadText(ctx context.Context, channelID, parentTS string) string {
	replies, err := f.replies(ctx, channelID, parentTS)
	if err != nil {
		f.log.Warn("Could not fetch thread replies",
			zap.String("channel", channelID),
			zap.String("ts", parentTS),
			zap.Error(err))
		return ""
	}
	if len(replies) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n  Thread replies:")
	for _, r := range replies {
		sb.WriteString(fmt.Sprintf("\n    - %s: %s", f.userName(ctx, r.User), r.Text))
	}
	return sb.String()
}

// replies pages through conversations.replies and drops the parent message,
// which Slack includes in the result.
func (f *SlackFetcher) replies(ctx context.Context, channelID, parentTS string) ([]slack.Message, error) {
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: parentTS,
	}

	var out []slack.Message
	for {
		msgs, hasMore, next, err := f.client.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetcher: replies to %s in %s: %w", parentTS, channelID, err)
		}
		for _, m := range msgs {
			if m.Timestamp == parentTS {
				continue
			}
			out = append(out, m)
		}
		if !hasMore || next == "" {
			return out, nil
		}
		params.Cursor = next
	}
}

// userName resolves a user id to a display name, falling back to UnknownUser.
func (f *SlackFetcher) userName(ctx context.Context, id string) string {
	if id == "" {
		return UnknownUser
	}
	now := f.now()
	if u, ok := f.users[id]; ok && now.Sub(u.fetched) < UserCacheTTL {
		return u.name
	}

	user, err := f.client.GetUserInfoContext(ctx, id)
	if err != nil {
		f.log.Debug("User lookup failed", zap.String("user", id), zap.Error(err))
		return UnknownUser
	}

	name := user.RealName
	if name == "" {
		name = user.Name
	}
	if name == "" {
		return UnknownUser
	}
	f.users[id] = cachedUser{name: name, fetched: now}
	return name
}

// Permalink builds the web URL of a message:
// https://<domain>.slack.com/archives/<channel>/p<ts without the dot>.
func Permalink(domain, channelID, ts string) string {
	return fmt.Sprintf("https://%s.slack.com/archives/%s/p%s", domain, channelID, strings.ReplaceAll(ts, ".", ""))
}

// ParseTimestamp converts a Slack ts ("1700000000.123456") to a time.
func ParseTimestamp(ts string) (time.Time, error) {
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetcher: invalid ts %q: %w", ts, err)
	}

	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		frac, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("fetcher: invalid ts %q: %w", ts, err)
		}
		for i := len(fracPart); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}
	return time.Unix(sec, nsec), nil
}

// FormatTimestamp renders t as a Slack ts with microsecond precision.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
