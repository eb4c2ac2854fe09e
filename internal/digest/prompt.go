package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/ryosukesatoh/slack-digest/internal/fetcher"
)

// NoMessages is the digest used when no channel produced any message.
const NoMessages = "No messages found in the specified channels."

// NoUpdates is what the model is told to answer when nothing stands out.
const NoUpdates = "No significant updates today."

const promptTemplate = `You are analyzing Slack messages from the last %d hours. Your job is to identify and summarize the most important, high-quality information.

Focus on:
- Important announcements or decisions
- Critical updates or blockers
- Valuable insights or discussions
- Action items that need attention
- News or information that would be valuable to know
- UI bugs or any quality issues that have been reported
- Any direct mentions of me that I need to give attention to
- **THREAD REPLIES**: Pay special attention to thread replies as they often contain resolutions, solutions, or important follow-up information to issues

Ignore:
- Casual conversations
- Simple acknowledgments ("thanks", "ok", etc.)
- Routine status updates with no significant information
- Off-topic chatter

Here are the messages (including thread replies):

%s

Please provide a concise daily digest organized by importance. Use this format:

🔴 CRITICAL / URGENT
[List any urgent items that need immediate attention. If a thread has replies with a resolution, mention the resolution.]

🟡 IMPORTANT UPDATES
[List significant updates, decisions, or announcements. Include resolutions from thread replies if applicable.]

🟢 NOTABLE DISCUSSIONS
[List interesting discussions or insights worth knowing. Note any conclusions reached in thread replies.]

IMPORTANT: Add a clickable link INLINE at the end of EACH bullet point (not on a separate line).
Use this EXACT format at the END of the sentence: (<URL|link>)
For example: "Database migration delayed until Friday (<https://example.slack.com/archives/C123/p456789|link>)"
The link should be in parentheses and appear right after the text, not on a new line with "Link:".

If there's nothing important, just say "%s"

Keep it concise and actionable.`

// BuildPrompt renders messages into the instruction prompt sent to the
// model. It returns NoMessages and false when there is nothing to summarize.
// The output depends only on its arguments.
func BuildPrompt(messages []fetcher.Message, lookback time.Duration) (string, bool) {
	if len(messages) == 0 {
		return NoMessages, false
	}

	blocks := make([]string, len(messages))
	for i, m := range messages {
		blocks[i] = FormatMessage(m)
	}

	return fmt.Sprintf(promptTemplate, lookbackHours(lookback), strings.Join(blocks, "\n\n"), NoUpdates), true
}

// FormatMessage renders a single message block of the prompt.
func FormatMessage(m fetcher.Message) string {
	return fmt.Sprintf("Channel: #%s\nFrom: %s\nTime: %s\nMessage: %s\nLink: <%s|link>",
		m.Channel, m.Author, m.Timestamp, m.Text, m.Permalink)
}

func lookbackHours(d time.Duration) int {
	h := int(d.Round(time.Hour) / time.Hour)
	if h < 1 {
		return 1
	}
	return h
}
