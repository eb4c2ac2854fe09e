package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// WebPublisher serves the latest digest over HTTP. Nothing is persisted;
// a restart starts empty.
type WebPublisher struct {
	addr   string
	log    *zap.Logger
	server *http.Server

	mu          sync.RWMutex
	latest      string
	publishedAt time.Time
}

// NewWebPublisher builds the router. /metrics is only mounted when gatherer
// is non-nil.
func NewWebPublisher(addr string, gatherer prometheus.Gatherer, log *zap.Logger) *WebPublisher {
	wp := &WebPublisher{addr: addr, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", wp.handleIndex)
	r.Get("/digest.txt", wp.handleText)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "ok")
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	wp.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return wp
}

func (wp *WebPublisher) Name() string { return "web" }

// Handler returns the router, for tests and embedding.
func (wp *WebPublisher) Handler() http.Handler {
	return wp.server.Handler
}

// Start begins serving HTTP in the background. Call Shutdown to stop.
func (wp *WebPublisher) Start() error {
	ln, err := net.Listen("tcp", wp.addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", wp.addr, err)
	}
	go func() {
		wp.log.Info("Web publisher listening", zap.String("addr", ln.Addr().String()))
		if err := wp.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wp.log.Error("Web publisher error", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (wp *WebPublisher) Shutdown(ctx context.Context) error {
	return wp.server.Shutdown(ctx)
}

func (wp *WebPublisher) Publish(_ context.Context, text string) error {
	wp.mu.Lock()
	wp.latest = text
	wp.publishedAt = time.Now()
	wp.mu.Unlock()
	wp.log.Info("Web publisher updated with new digest", zap.Int("bytes", len(text)))
	return nil
}

func (wp *WebPublisher) snapshot() (string, time.Time) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.latest, wp.publishedAt
}

func (wp *WebPublisher) handleIndex(w http.ResponseWriter, _ *http.Request) {
	text, at := wp.snapshot()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if text == "" {
		fmt.Fprint(w, `<!DOCTYPE html><html><body><h1>Slack Digest</h1><p>No digest available yet. Check back later.</p></body></html>`)
		return
	}
	fmt.Fprintf(w, pageTemplate, at.Format(time.RFC1123), renderHTML(text))
}

func (wp *WebPublisher) handleText(w http.ResponseWriter, _ *http.Request) {
	text, _ := wp.snapshot()
	if text == "" {
		http.Error(w, "no digest available yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, text)
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Slack Digest</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 760px; margin: 0 auto; padding: 20px; color: #333; line-height: 1.6; }
a { color: #1264a3; }
li { margin: 6px 0; }
.meta { color: #666; font-size: 0.9em; }
</style>
</head>
<body>
<p class="meta">Published %s</p>
%s
</body>
</html>`

var slackLinkRegex = regexp.MustCompile(`<(https?://[^|>\s]+)\|([^>]+)>`)

// renderHTML converts the Slack-flavoured digest to HTML. Slack links
// <url|label> become markdown links first; any other raw HTML is dropped and
// only links with safe schemes are rendered as anchors.
func renderHTML(text string) string {
	md := slackLinkRegex.ReplaceAllString(text, "[$2]($1)")

	extensions := parser.CommonExtensions | parser.HardLineBreak | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	flags := html.CommonFlags | html.HrefTargetBlank | html.SkipHTML |
		html.Safelink | html.NofollowLinks | html.NoreferrerLinks | html.NoopenerLinks
	opts := html.RendererOptions{Flags: flags}
	return string(markdown.Render(doc, html.NewRenderer(opts)))
}
