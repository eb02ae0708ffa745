package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"freshrss_filter/internal/config"
	"freshrss_filter/internal/model"
)

const anthropicDefaultMaxTokens = 256

// Anthropic classifies through the Anthropic messages API.
type Anthropic struct {
	client *anthropic.Client
	cfg    config.ClassifierConfig
	prompt string
}

// NewAnthropic creates an Anthropic classifier with retries disabled.
// The OpenAI default base URL is ignored so the SDK default applies.
func NewAnthropic(cfg config.ClassifierConfig, opts ...option.RequestOption) *Anthropic {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.APIBase != "" && !strings.Contains(cfg.APIBase, "api.openai.com") {
		base = append(base, option.WithBaseURL(cfg.APIBase))
	}
	client := anthropic.NewClient(append(base, opts...)...)
	return &Anthropic{client: &client, cfg: cfg, prompt: systemPrompt(cfg)}
}

// Classify implements Classifier.
func (c *Anthropic) Classify(ctx context.Context, text string) (model.Verdict, error) {
	maxTokens := int64(anthropicDefaultMaxTokens)
	if c.cfg.MaxTokens != nil {
		maxTokens = int64(*c.cfg.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.prompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	}
	if c.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*c.cfg.Temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("anthropic API error: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return ParseVerdict(block.Text)
		}
	}
	return model.Verdict{}, errors.New("no text response from anthropic")
}
