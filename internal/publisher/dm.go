package publisher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// MaxMessageLength is the longest text sent in a single chat.postMessage.
// Slack truncates messages beyond 40k characters.
const MaxMessageLength = 39000

// DMClient is the subset of the Slack Web API used to send a direct message.
type DMClient interface {
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// DMPublisher sends the digest as a direct message to one user.
type DMPublisher struct {
	client DMClient
	userID string
	log    *zap.Logger

	mu        sync.Mutex
	channelID string
}

func NewDMPublisher(client DMClient, userID string, log *zap.Logger) *DMPublisher {
	return &DMPublisher{client: client, userID: userID, log: log}
}

func (p *DMPublisher) Name() string { return "dm" }

// Publish opens (or reuses) the DM channel with the recipient and posts the
// text with link and media previews disabled.
func (p *DMPublisher) Publish(ctx context.Context, text string) error {
	channelID, err := p.dmChannel(ctx)
	if err != nil {
		return err
	}

	for _, chunk := range splitMessage(text, MaxMessageLength) {
		_, ts, err := p.client.PostMessageContext(ctx, channelID,
			slack.MsgOptionText(chunk, false),
			slack.MsgOptionDisableLinkUnfurl(),
			slack.MsgOptionDisableMediaUnfurl(),
		)
		if err != nil {
			return fmt.Errorf("dm: failed to post to %s: %w", p.userID, err)
		}
		p.log.Debug("Posted digest message", zap.String("channel", channelID), zap.String("ts", ts))
	}

	p.log.Info("Daily digest sent", zap.String("user", p.userID))
	return nil
}

func (p *DMPublisher) dmChannel(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channelID != "" {
		return p.channelID, nil
	}

	ch, _, _, err := p.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{p.userID},
	})
	if err != nil {
		return "", fmt.Errorf("dm: failed to open conversation with %s: %w", p.userID, err)
	}
	p.channelID = ch.ID
	return p.channelID, nil
}

// splitMessage breaks text into chunks of at most max bytes, preferring line
// boundaries and never splitting a UTF-8 sequence.
func splitMessage(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	for len(text) > max {
		cut := strings.LastIndex(text[:max], "\n")
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8Start(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
