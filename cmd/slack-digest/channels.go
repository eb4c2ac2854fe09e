package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ryosukesatoh/slack-digest/internal/chat"
)

// maxNonMembers caps the "not a member" listing.
const maxNonMembers = 20

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the channels your token can read and print your user id",
	Long: `List every non-archived channel visible to the configured token, split into
channels it is already a member of (ready to monitor) and the rest, and print
the SLACK_CHANNELS and SLACK_USER_ID lines to put in your .env file.`,
	Args: cobra.NoArgs,
	RunE: runChannels,
}

func init() {
	rootCmd.AddCommand(channelsCmd)
}

func runChannels(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}

	creds := chat.Credentials{Token: cfg.Slack.Token, Cookie: cfg.Slack.Cookie}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, authBanner(creds)+"\n\n")

	return describeWorkspace(cmd.Context(), out, chat.New(creds))
}

// authBanner describes how the credentials will authenticate. A session token
// without its d cookie is flagged since Slack rejects it.
func authBanner(creds chat.Credentials) string {
	switch {
	case creds.IsUserToken() && creds.Cookie != "":
		return "🔐 Using user token with cookie authentication"
	case creds.IsUserToken():
		return "⚠️  User token (xoxc-...) without SLACK_COOKIE; requests will fail with invalid_auth"
	default:
		return "🤖 Using bot token authentication"
	}
}

// describeWorkspace prints the channel listing followed by the caller's
// identity. A listing failure is reported but does not skip the identity.
func describeWorkspace(ctx context.Context, out io.Writer, dir chat.Directory) error {
	fmt.Fprint(out, "📺 Fetching channels...\n\n")
	member, other, err := chat.ListChannels(ctx, dir)
	if err != nil {
		printListError(out, err)
	} else {
		printChannels(out, member, other)
	}

	id, idErr := chat.WhoAmI(ctx, dir)
	if idErr != nil {
		fmt.Fprintf(out, "❌ Error getting user info: %s\n", errorCode(idErr))
		return errors.Join(err, idErr)
	}
	printIdentity(out, id)
	return err
}

func printChannels(w io.Writer, member, other []chat.Channel) {
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	fmt.Fprintf(w, "Found %d channels:\n\n%s\n", len(member)+len(other), rule)

	if len(member) > 0 {
		fmt.Fprintf(w, "\n✅ CHANNELS YOU ARE IN (ready to monitor):\n%s\n", thin)
		for _, ch := range member {
			fmt.Fprintf(w, "  #%-30s | ID: %s | %d members\n", ch.Name, ch.ID, ch.NumMembers)
		}
	}

	if len(other) > 0 {
		fmt.Fprintf(w, "\n\n⚠️  CHANNELS YOU ARE NOT IN (invite the bot first):\n%s\n", thin)
		for i, ch := range other {
			if i == maxNonMembers {
				fmt.Fprintf(w, "  ... and %d more\n", len(other)-maxNonMembers)
				break
			}
			fmt.Fprintf(w, "  #%-30s | ID: %s\n", ch.Name, ch.ID)
			fmt.Fprintf(w, "      To add the bot: open #%s and type: /invite @YourBotName\n", ch.Name)
		}
	}

	fmt.Fprintf(w, "\n%s\n", rule)

	if len(member) > 0 {
		fmt.Fprintf(w, "\n📝 Add to your .env file:\n%s\n", thin)
		fmt.Fprintf(w, "SLACK_CHANNELS=%s\n", exampleChannels(member, 3))
		if len(member) > 3 {
			fmt.Fprintln(w, "\n(Showing first 3 channels, add more as needed)")
		}
	}
}

func exampleChannels(channels []chat.Channel, n int) string {
	if len(channels) > n {
		channels = channels[:n]
	}
	ids := make([]string, len(channels))
	for i, ch := range channels {
		ids[i] = ch.ID
	}
	return strings.Join(ids, ",")
}

func printListError(w io.Writer, err error) {
	if errors.Is(err, chat.ErrMissingScope) {
		fmt.Fprintln(w, "❌ Error: Missing required permissions")
		fmt.Fprintln(w, "\nYour token needs these OAuth scopes:")
		fmt.Fprintln(w, "  - channels:read")
		fmt.Fprintln(w, "  - channels:history")
		fmt.Fprintln(w, "\nAdd them at: https://api.slack.com/apps -> Your App -> OAuth & Permissions")
		return
	}
	fmt.Fprintf(w, "❌ Error: %s\n", errorCode(err))
}

func printIdentity(w io.Writer, id *chat.Identity) {
	fmt.Fprintln(w, "\n👤 Your User Info:")
	fmt.Fprintf(w, "   User ID: %s\n", id.UserID)
	fmt.Fprintf(w, "   Username: %s\n", id.User)
	fmt.Fprintf(w, "   Team: %s\n", id.Team)
	fmt.Fprintln(w, "\n📝 Add to your .env file:")
	fmt.Fprintf(w, "   SLACK_USER_ID=%s\n", id.UserID)
}

// errorCode prefers the short Slack error code over the wrapped message.
func errorCode(err error) string {
	if code := chat.APIErrorCode(err); code != "" {
		return code
	}
	return err.Error()
}
