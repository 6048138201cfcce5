package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elan-ai/elan/pkg/config"
)

const anthropicVersion = "2023-06-01"

// Anthropic invokes the Anthropic messages API over plain HTTP.
type Anthropic struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewAnthropic creates an Anthropic invoker from provider configuration.
func NewAnthropic(cfg config.ProviderConfig) *Anthropic {
	url := cfg.URL
	if url == "" {
		url = "https://api.anthropic.com"
	}
	return &Anthropic{
		url:    strings.TrimRight(url, "/"),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: http.DefaultClient,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

// Invoke sends a single-message request and returns the full text.
func (p *Anthropic) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := p.do(ctx, prompt, maxTokens, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: upstream returned %d", resp.StatusCode)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}

	var b strings.Builder
	for _, c := range parsed.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String(), nil
}

// InvokeStream sends a single-message request and returns the response as
// a chunk stream parsed from the SSE wire format.
func (p *Anthropic) InvokeStream(ctx context.Context, prompt string, maxTokens int) (Stream, error) {
	resp, err := p.do(ctx, prompt, maxTokens, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("anthropic: upstream returned %d", resp.StatusCode)
	}
	return &anthropicStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

func (p *Anthropic) do(ctx context.Context, prompt string, maxTokens int, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		Stream:    stream,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return resp, nil
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *anthropicStream) Recv() (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var evt anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			continue
		}
		switch evt.Type {
		case "content_block_delta":
			if evt.Delta.Type == "text_delta" {
				return evt.Delta.Text, nil
			}
		case "message_stop":
			return "", io.EOF
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("anthropic: reading stream: %w", err)
	}
	return "", io.EOF
}

func (s *anthropicStream) Close() error {
	return s.body.Close()
}
