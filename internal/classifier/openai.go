package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"freshrss_filter/internal/config"
	"freshrss_filter/internal/model"
)

// OpenAI classifies through an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	cfg    config.ClassifierConfig
	prompt string
}

// NewOpenAI creates an OpenAI classifier. Retries are disabled; a failed
// item is picked up again on the next scheduled run.
func NewOpenAI(cfg config.ClassifierConfig, opts ...option.RequestOption) *OpenAI {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.APIBase != "" {
		base = append(base, option.WithBaseURL(cfg.APIBase))
	}
	client := openai.NewClient(append(base, opts...)...)
	return &OpenAI{client: &client, cfg: cfg, prompt: systemPrompt(cfg)}
}

// Classify implements Classifier.
func (c *OpenAI) Classify(ctx context.Context, text string) (model.Verdict, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.prompt),
			openai.UserMessage(text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.cfg.Temperature != nil {
		params.Temperature = openai.Float(*c.cfg.Temperature)
	}
	if c.cfg.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*c.cfg.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Verdict{}, errors.New("no response from openai")
	}

	return ParseVerdict(resp.Choices[0].Message.Content)
}
