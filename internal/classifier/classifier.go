// Package classifier asks a language model whether an item is an advertisement.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"freshrss_filter/internal/config"
	"freshrss_filter/internal/model"
)

// Classifier returns a verdict for a piece of item text.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Verdict, error)
}

// New builds the classifier selected by cfg.Provider, rate limited when
// cfg.RequestsPerSecond is positive.
func New(cfg config.ClassifierConfig) (Classifier, error) {
	var c Classifier
	switch cfg.Provider {
	case "", "openai":
		c = NewOpenAI(cfg)
	case "anthropic":
		c = NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		c = NewRateLimited(c, rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1))
	}
	return c, nil
}

// ParseVerdict decodes a model reply. The reply may be wrapped in a code
// fence and may hold either one verdict object or a list of them. For a
// list, the most confident ad verdict wins; without any ad verdict the most
// confident entry overall is used.
func ParseVerdict(raw string) (model.Verdict, error) {
	content := cleanJSONResponse(raw)

	switch {
	case strings.HasPrefix(content, "{"):
		var v model.Verdict
		if err := json.Unmarshal([]byte(content), &v); err != nil {
			return model.Verdict{}, fmt.Errorf("parse verdict: %w, content: %s", err, content)
		}
		return v, nil
	case strings.HasPrefix(content, "["):
		var list []model.Verdict
		if err := json.Unmarshal([]byte(content), &list); err != nil {
			return model.Verdict{}, fmt.Errorf("parse verdict list: %w, content: %s", err, content)
		}
		return pickVerdict(list)
	default:
		return model.Verdict{}, fmt.Errorf("unexpected classifier reply: %s", content)
	}
}

func pickVerdict(list []model.Verdict) (model.Verdict, error) {
	if len(list) == 0 {
		return model.Verdict{}, errors.New("empty verdict list")
	}

	best, bestAd := -1, -1
	for i, v := range list {
		if best < 0 || v.Confidence > list[best].Confidence {
			best = i
		}
		if v.IsAd && (bestAd < 0 || v.Confidence > list[bestAd].Confidence) {
			bestAd = i
		}
	}
	if bestAd >= 0 {
		return list[bestAd], nil
	}
	return list[best], nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func systemPrompt(cfg config.ClassifierConfig) string {
	if p := strings.TrimSpace(cfg.SystemPrompt); p != "" {
		return p
	}
	return config.DefaultSystemPrompt
}

// RateLimited waits for a limiter token before each classification.
type RateLimited struct {
	next    Classifier
	limiter *rate.Limiter
}

// NewRateLimited wraps next with limiter.
func NewRateLimited(next Classifier, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter}
}

// Classify implements Classifier.
func (r *RateLimited) Classify(ctx context.Context, text string) (model.Verdict, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return model.Verdict{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Classify(ctx, text)
}
