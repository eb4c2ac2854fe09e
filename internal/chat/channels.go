package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
)

// Directory is the subset of the Slack client used to enumerate channels and
// identify the caller.
type Directory interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
}

// Channel is a channel the caller can see.
type Channel struct {
	ID         string
	Name       string
	IsMember   bool
	IsPrivate  bool
	NumMembers int
}

// Identity describes the authenticated caller.
type Identity struct {
	UserID string
	User   string
	Team   string
	TeamID string
	URL    string
}

// ErrMissingScope is returned when the token lacks an OAuth scope needed to
// list channels.
var ErrMissingScope = errors.New("missing required OAuth scope")

// ListChannels returns every non-archived public and private channel visible
// to the caller, split into those the caller is a member of and the rest.
// Both slices keep the API order.
func ListChannels(ctx context.Context, dir Directory) (member, other []Channel, err error) {
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           1000,
		Types:           []string{"public_channel", "private_channel"},
	}

	for {
		channels, next, err := dir.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, nil, wrapAPIError("list conversations", err)
		}
		for _, ch := range channels {
			c := Channel{
				ID:         ch.ID,
				Name:       ch.Name,
				IsMember:   ch.IsMember,
				IsPrivate:  ch.IsPrivate,
				NumMembers: ch.NumMembers,
			}
			if c.IsMember {
				member = append(member, c)
			} else {
				other = append(other, c)
			}
		}
		if next == "" {
			return member, other, nil
		}
		params.Cursor = next
	}
}

// WhoAmI returns the identity behind the configured token.
func WhoAmI(ctx context.Context, dir Directory) (*Identity, error) {
	resp, err := dir.AuthTestContext(ctx)
	if err != nil {
		return nil, wrapAPIError("auth test", err)
	}
	return &Identity{
		UserID: resp.UserID,
		User:   resp.User,
		Team:   resp.Team,
		TeamID: resp.TeamID,
		URL:    resp.URL,
	}, nil
}

// APIErrorCode extracts the Slack error code ("channel_not_found",
// "missing_scope", ...) from err, or "" when err is not a Slack API error.
func APIErrorCode(err error) string {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		return se.Err
	}
	return ""
}

func wrapAPIError(op string, err error) error {
	if APIErrorCode(err) == "missing_scope" {
		return fmt.Errorf("chat: %s: %w: %w", op, ErrMissingScope, err)
	}
	return fmt.Errorf("chat: %s: %w", op, err)
}
