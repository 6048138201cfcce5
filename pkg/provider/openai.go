package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/elan-ai/elan/pkg/config"
)

// OpenAI invokes an OpenAI-compatible chat completion API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI invoker from provider configuration.
// A custom URL points the client at any OpenAI-compatible endpoint.
func NewOpenAI(cfg config.ProviderConfig) *OpenAI {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.URL != "" {
		cc.BaseURL = cfg.URL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cc), model: cfg.Model}
}

// Invoke sends a single-message completion and returns the full text.
func (p *OpenAI) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// InvokeStream sends a single-message completion and returns the response
// as a chunk stream.
func (p *OpenAI) InvokeStream(ctx context.Context, prompt string, maxTokens int) (Stream, error) {
	s, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		Stream:    true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}
	return &openaiStream{inner: s}, nil
}

type openaiStream struct {
	inner *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			return "", err // io.EOF passes through unchanged
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}
