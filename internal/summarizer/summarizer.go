package summarizer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/slack-digest/internal/config"
)

var (
	// ErrBackendUnavailable wraps transport failures and error statuses.
	ErrBackendUnavailable = errors.New("text-generation backend unavailable")
	// ErrNoResponse means the backend answered without any generated text.
	ErrNoResponse = errors.New("no response from backend")
	// ErrUnsupportedSummarizerType is returned by New for unknown backend types.
	ErrUnsupportedSummarizerType = errors.New("unsupported summarizer type")
)

// NoResponseText is the digest used when the backend returned no text.
const NoResponseText = "No response from AI"

// Backend generates a completion for a single prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer turns a prompt into a digest. It never fails: backend errors
// are logged and converted into a human-readable digest text.
type Summarizer struct {
	backend  Backend
	endpoint string
	log      *zap.Logger
}

func NewSummarizer(backend Backend, endpoint string, log *zap.Logger) *Summarizer {
	return &Summarizer{backend: backend, endpoint: endpoint, log: log}
}

// New creates a summarizer for the configured backend type.
func New(cfg *config.Config, log *zap.Logger) (*Summarizer, error) {
	sc := cfg.Summarizer
	var backend Backend
	switch sc.Type {
	case "ollama":
		backend = NewOllamaBackend(sc.URL, sc.Model, sc.Timeout)
	case "openai":
		backend = NewOpenAIBackend(sc.URL, sc.Model, sc.APIKey, sc.Timeout)
	default:
		return nil, fmt.Errorf("summarizer: %w: %q", ErrUnsupportedSummarizerType, sc.Type)
	}
	return NewSummarizer(backend, sc.URL, log), nil
}

// Summarize returns the model's digest for prompt, or a fixed error text.
func (s *Summarizer) Summarize(ctx context.Context, prompt string) string {
	text, err := s.backend.Generate(ctx, prompt)
	switch {
	case err == nil:
		return text
	case errors.Is(err, ErrBackendUnavailable):
		s.log.Error("Error connecting to text-generation backend",
			zap.String("endpoint", s.endpoint),
			zap.Error(err))
		return UnreachableText(s.endpoint)
	case errors.Is(err, ErrNoResponse):
		s.log.Warn("Backend returned no text", zap.Error(err))
		return NoResponseText
	default:
		s.log.Error("Error analyzing messages", zap.Error(err))
		return fmt.Sprintf("Error analyzing messages: %v", err)
	}
}

// UnreachableText is the digest used when the backend at endpoint could not
// be reached.
func UnreachableText(endpoint string) string {
	return fmt.Sprintf("Error: Could not connect to the text-generation backend at %s. "+
		"Make sure it is running (e.g. `ollama serve` or `brew services start ollama`).", endpoint)
}
