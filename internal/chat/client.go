// Package chat wraps the Slack Web API client: authentication with bot or
// user tokens, and the channel/identity lookups used to produce configuration.
package chat

import (
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// DefaultHTTPTimeout bounds every Slack Web API request.
const DefaultHTTPTimeout = 30 * time.Second

// Credentials holds authentication data for Slack API access.
type Credentials struct {
	Token  string // xoxb-... bot token or xoxc-... user token
	Cookie string // value of the "d" session cookie, required for xoxc tokens
}

// IsUserToken reports whether the token is a browser session token that must
// be sent together with the "d" cookie.
func (c Credentials) IsUserToken() bool {
	return strings.HasPrefix(c.Token, "xoxc-")
}

// Option customizes the underlying slack client.
type Option func(*options)

type options struct {
	apiURL     string
	httpClient *http.Client
}

// WithAPIURL points the client at a different Web API base URL.
// Useful for testing with mock servers. The URL must end with a slash.
func WithAPIURL(url string) Option {
	return func(o *options) { o.apiURL = url }
}

// WithHTTPClient replaces the default HTTP client. The cookie transport, when
// needed, wraps the given client's transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New returns a Slack client authenticated with creds. When a cookie is set
// every request carries it as "d=<cookie>".
func New(creds Credentials, opts ...Option) *slack.Client {
	o := options{httpClient: &http.Client{Timeout: DefaultHTTPTimeout}}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if creds.Cookie != "" {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc = &http.Client{
			Timeout:   hc.Timeout,
			Jar:       hc.Jar,
			Transport: &cookieTransport{base: base, cookie: creds.Cookie},
		}
	}

	slackOpts := []slack.Option{slack.OptionHTTPClient(hc)}
	if o.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(o.apiURL))
	}
	return slack.New(creds.Token, slackOpts...)
}

type cookieTransport struct {
	base   http.RoundTripper
	cookie string
}

func (t *cookieTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Add("Cookie", "d="+t.cookie)
	return t.base.RoundTrip(r)
}
