package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	domai "github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/prompt"
)

const defaultModel = "gemini-1.5-flash-latest"

// Client enriches findings through the Gemini API. The key is supplied per
// call, so a client is built per request and closed right after.
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

	cli, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer cli.Close()

	model := cli.GenerativeModel(c.modelName())
	model.SetTemperature(0)

	text := prompt.GetSystemPrompt() + "\n\n" + prompt.GetUserPrompt(f)
	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return nil, translateError(err)
	}

	raw, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return prompt.ParseEnrichment(raw)
}

// Ping performs a minimal generation to verify the key works.
func (c *Client) Ping(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return domai.ErrAPIKeyMissing
	}

	cli, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return err
	}
	defer cli.Close()

	if _, err := cli.GenerativeModel(c.modelName()).GenerateContent(ctx, genai.Text("Hello")); err != nil {
		return translateError(err)
	}
	return nil
}

func (c *Client) modelName() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModel
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response content")
	}
	return b.String(), nil
}

// translateError maps provider 429s to the retryable sentinel; everything
// else stays terminal.
func translateError(err error) error {
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code == http.StatusTooManyRequests {
		return domai.ErrRateLimited
	}
	return err
}
