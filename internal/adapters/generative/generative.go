// Package generative implements ports.GenerativeText over the Anthropic
// Messages API: the one call type every consumer builds on — system
// prompt + user prompt in, a JSON object's raw bytes out.
package generative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/benefis-partners/prospect-pipeline/internal/platform/resilience"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
)

// Client implements ports.GenerativeText.
type Client struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	breaker     *resilience.Breaker
}

// Options configures a Client.
type Options struct {
	APIKey    string
	Model     anthropic.Model // defaults to anthropic.ModelClaude3_7SonnetLatest if empty
	MaxTokens int64           // defaults to 1024 if zero
}

// New builds a generative-text Client.
func New(opts Options) *Client {
	m := opts.Model
	if m == "" {
		m = anthropic.ModelClaude3_7SonnetLatest
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &Client{
		client:    anthropic.NewClient(option.WithAPIKey(opts.APIKey)),
		model:     m,
		maxTokens: maxTokens,
		breaker:   resilience.NewBreaker("generative", 5, 30*time.Second),
	}
}

// Complete issues one Messages API call with the response steered toward a
// single JSON object via an explicit instruction appended to the system
// prompt, since the Messages API has no native JSON-object response mode.
// It returns the raw text the model produced for the caller to decode
// strictly against its own schema.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	steeredSystem := systemPrompt + "\n\nRespond with ONLY a single valid JSON object. No prose, no markdown code fences, no explanation outside the JSON."

	text, err := resilience.Call(ctx, c.breaker, model.Stage3Qualify, resilience.DefaultPolicy, func(ctx context.Context) (string, error) {
		return c.complete(ctx, steeredSystem, userPrompt)
	})
	if err != nil {
		return nil, err
	}

	return []byte(extractJSONObject(text)), nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", model.NewStageError(model.Stage3Qualify, model.ErrKindBadResponse, "generative response contained no text block")
	}
	return sb.String(), nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return resilience.NewRateLimited(model.Stage3Qualify, fmt.Sprintf("anthropic rate limited: %v", err), 0)
		case 500, 502, 503, 504:
			return model.NewStageError(model.Stage3Qualify, model.ErrKindTransport, "anthropic transient error: %v", err)
		}
	}
	return model.NewStageError(model.Stage3Qualify, model.ErrKindTransport, "anthropic call failed: %v", err)
}

// extractJSONObject trims anything outside the outermost {...} pair, in
// case the model wraps its JSON in stray prose despite instructions.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
