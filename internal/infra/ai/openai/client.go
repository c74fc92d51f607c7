package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	domai "github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/prompt"
)

const maxTokens = 2048

// Client enriches findings through the OpenAI chat API.
type Client struct {
	Model string
}

func New(model string) *Client {
	return &Client{Model: model}
}

func (c *Client) Enrich(ctx context.Context, apiKey string, f *findings.Finding) (*domai.Enrichment, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domai.ErrAPIKeyMissing
	}

	model := c.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(f)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := openai.NewClient(apiKey).CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, translateError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}
	return prompt.ParseEnrichment(resp.Choices[0].Message.Content)
}

// Ping performs a minimal completion to verify the key works.
func (c *Client) Ping(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return domai.ErrAPIKeyMissing
	}

	model := c.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	_, err := openai.NewClient(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hello"},
		},
	})
	if err != nil {
		return translateError(err)
	}
	return nil
}

// translateError maps provider 429s to the retryable sentinel; everything
// else stays terminal.
func translateError(err error) error {
	var ae *openai.APIError
	if errors.As(err, &ae) && ae.HTTPStatusCode == http.StatusTooManyRequests {
		return domai.ErrRateLimited
	}
	return err
}
