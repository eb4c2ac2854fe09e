package digest

import (
	"fmt"
	"strings"
	"time"
)

const headerRuleWidth = 50

// Header renders the block placed above the digest in the delivered message.
func Header(now time.Time, messageCount, channelCount int) string {
	return fmt.Sprintf("*📬 Daily Slack Digest* - %s\n_Analyzed %d messages from %d channel(s)_\n\n%s\n\n",
		now.Format("January 02, 2006"), messageCount, channelCount, strings.Repeat("─", headerRuleWidth))
}

// Compose joins the header and the digest into the final message.
func Compose(header, digest string) string {
	return header + digest
}
