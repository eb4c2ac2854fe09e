package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultTimeout bounds a whole generate call, including model load time.
const DefaultTimeout = 120 * time.Second

// OllamaBackend calls Ollama's native non-streaming /api/generate endpoint.
type OllamaBackend struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaBackend(baseURL, model string, timeout time.Duration) *OllamaBackend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

func (b *OllamaBackend) Generate(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(generateRequest{Model: b.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("ollama: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("ollama: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: %w: failed to read response: %w", ErrBackendUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("ollama: %w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, msg)
	}

	if !gjson.ValidBytes(respBody) {
		return "", fmt.Errorf("ollama: failed to parse response: invalid JSON")
	}

	result := gjson.GetBytes(respBody, "response")
	if !result.Exists() {
		return "", fmt.Errorf("ollama: %w", ErrNoResponse)
	}
	return result.String(), nil
}
