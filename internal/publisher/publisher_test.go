package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap/zaptest"

	"github.com/ryosukesatoh/slack-digest/internal/chat"
	"github.com/ryosukesatoh/slack-digest/internal/metrics"
)

// slackAPI records the form values of every call made against it.
type slackAPI struct {
	opens    int
	posts    []map[string]string
	postFail bool
}

func (s *slackAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations.open", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		s.opens++
		if r.Form.Get("users") != "U42" {
			t.Errorf("Expected users=U42, got %q", r.Form.Get("users"))
		}
		writeJSON(w, map[string]any{"ok": true, "channel": map[string]any{"id": "D42"}})
	})
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		post := map[string]string{}
		for k := range r.Form {
			post[k] = r.Form.Get(k)
		}
		s.posts = append(s.posts, post)
		if s.postFail {
			writeJSON(w, map[string]any{"ok": false, "error": "channel_not_found"})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "channel": "D42", "ts": "1700000000.000100"})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestDMPublish(t *testing.T) {
	api := &slackAPI{}
	ts := api.server(t)
	client := chat.New(chat.Credentials{Token: "xoxb-test"}, chat.WithAPIURL(ts.URL+"/"))

	pub := NewDMPublisher(client, "U42", zaptest.NewLogger(t))
	if err := pub.Publish(context.Background(), "*📬 Daily Slack Digest*\nhello"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if len(api.posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(api.posts))
	}
	post := api.posts[0]
	if post["channel"] != "D42" {
		t.Errorf("Expected post to D42, got %q", post["channel"])
	}
	if post["text"] != "*📬 Daily Slack Digest*\nhello" {
		t.Errorf("Unexpected text %q", post["text"])
	}
	if post["unfurl_links"] != "false" {
		t.Errorf("Expected unfurl_links=false, got %q", post["unfurl_links"])
	}
	if post["unfurl_media"] != "false" {
		t.Errorf("Expected unfurl_media=false, got %q", post["unfurl_media"])
	}
}

func TestDMPublishReusesChannel(t *testing.T) {
	api := &slackAPI{}
	ts := api.server(t)
	client := chat.New(chat.Credentials{Token: "xoxb-test"}, chat.WithAPIURL(ts.URL+"/"))

	pub := NewDMPublisher(client, "U42", zaptest.NewLogger(t))
	for i := 0; i < 3; i++ {
		if err := pub.Publish(context.Background(), "digest"); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}

	if api.opens != 1 {
		t.Errorf("Expected conversations.open once, got %d", api.opens)
	}
	if len(api.posts) != 3 {
		t.Errorf("Expected 3 posts, got %d", len(api.posts))
	}
}

func TestDMPublishPostError(t *testing.T) {
	api := &slackAPI{postFail: true}
	ts := api.server(t)
	client := chat.New(chat.Credentials{Token: "xoxb-test"}, chat.WithAPIURL(ts.URL+"/"))

	err := NewDMPublisher(client, "U42", zaptest.NewLogger(t)).Publish(context.Background(), "digest")
	if err == nil {
		t.Fatal("Expected error for failed post")
	}
	if !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("Expected Slack error code in %v", err)
	}
}

func TestDMPublishSplitsLongMessages(t *testing.T) {
	api := &slackAPI{}
	ts := api.server(t)
	client := chat.New(chat.Credentials{Token: "xoxb-test"}, chat.WithAPIURL(ts.URL+"/"))

	line := strings.Repeat("x", 999) + "\n"
	text := strings.Repeat(line, 50) // 50k bytes
	if err := NewDMPublisher(client, "U42", zaptest.NewLogger(t)).Publish(context.Background(), text); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(api.posts) != 2 {
		t.Fatalf("Expected 2 posts, got %d", len(api.posts))
	}
	for _, p := range api.posts {
		if len(p["text"]) > MaxMessageLength {
			t.Errorf("Post of %d bytes exceeds limit", len(p["text"]))
		}
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{name: "short unchanged", text: "hello", max: 10, want: []string{"hello"}},
		{name: "exact length unchanged", text: "hello", max: 5, want: []string{"hello"}},
		{name: "prefers line boundary", text: "aaa\nbbb\nccc", max: 8, want: []string{"aaa\nbbb", "ccc"}},
		{name: "hard split without newline", text: "abcdefgh", max: 3, want: []string{"abc", "def", "gh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitMessage(tt.text, tt.max)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSplitMessageKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("📬", 10) // 4 bytes each
	for _, chunk := range splitMessage(text, 6) {
		if !utf8.ValidString(chunk) {
			t.Errorf("Chunk %q is not valid UTF-8", chunk)
		}
	}
}

func TestStdoutPublish(t *testing.T) {
	var buf bytes.Buffer
	pub := &StdoutPublisher{w: &buf}

	if err := pub.Publish(context.Background(), "digest body\n"); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	rule := strings.Repeat("=", 72)
	want := rule + "\ndigest body\n" + rule + "\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}

func get(t *testing.T, h http.Handler, path string) (int, string, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, rec.Header().Get("Content-Type"), string(body)
}

func TestWebPublisherBeforePublish(t *testing.T) {
	wp := NewWebPublisher("127.0.0.1:0", nil, zaptest.NewLogger(t))
	h := wp.Handler()

	code, _, body := get(t, h, "/")
	if code != http.StatusOK || !strings.Contains(body, "No digest available yet") {
		t.Errorf("Unexpected index before publish: %d %q", code, body)
	}

	code, _, _ = get(t, h, "/digest.txt")
	if code != http.StatusNotFound {
		t.Errorf("Expected 404 for digest.txt, got %d", code)
	}

	code, _, _ = get(t, h, "/metrics")
	if code != http.StatusNotFound {
		t.Errorf("Expected /metrics to be absent without a gatherer, got %d", code)
	}
}

func TestWebPublisherRoutes(t *testing.T) {
	m := metrics.New()
	m.RunStarted()
	wp := NewWebPublisher("127.0.0.1:0", m.Gatherer(), zaptest.NewLogger(t))
	h := wp.Handler()

	text := "🔴 CRITICAL / URGENT\n- Deploy blocked (<https://acme.slack.com/archives/C1/p1|link>)\n- <script>alert(1)</script>\n" +
		"- click [here](javascript:alert(document.cookie)) (<https://acme.slack.com/archives/C1/p2|link>)"
	if err := wp.Publish(context.Background(), text); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	code, ctype, body := get(t, h, "/")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !strings.HasPrefix(ctype, "text/html") {
		t.Errorf("Expected HTML content type, got %q", ctype)
	}
	if !strings.Contains(body, `href="https://acme.slack.com/archives/C1/p1"`) {
		t.Errorf("Expected Slack link rendered as anchor, got %s", body)
	}
	if strings.Contains(body, "<script>") {
		t.Error("Expected raw HTML to be dropped")
	}
	if strings.Contains(body, `href="javascript:`) {
		t.Errorf("Expected javascript: links not to be rendered as anchors, got %s", body)
	}
	if !strings.Contains(body, "nofollow") {
		t.Error("Expected links to carry rel=nofollow")
	}

	code, ctype, body = get(t, h, "/digest.txt")
	if code != http.StatusOK || body != text {
		t.Errorf("Expected raw digest, got %d %q", code, body)
	}
	if !strings.HasPrefix(ctype, "text/plain") {
		t.Errorf("Expected plain text content type, got %q", ctype)
	}

	code, _, body = get(t, h, "/healthz")
	if code != http.StatusOK || body != "ok" {
		t.Errorf("Unexpected healthz response: %d %q", code, body)
	}

	code, _, body = get(t, h, "/metrics")
	if code != http.StatusOK || !strings.Contains(body, "slack_digest_runs_total 1") {
		t.Errorf("Expected metrics exposition, got %d", code)
	}
}

func TestWebPublisherStartShutdown(t *testing.T) {
	wp := NewWebPublisher("127.0.0.1:0", nil, zaptest.NewLogger(t))
	if err := wp.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := wp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}
