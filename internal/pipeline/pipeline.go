// Package pipeline classifies unread items and applies the configured
// remediation to advertisements.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"freshrss_filter/internal/content"
	"freshrss_filter/internal/model"
)

// DefaultConcurrency is the number of items processed at once.
const DefaultConcurrency = 5

// Source supplies unread items and accepts remediation calls.
type Source interface {
	FetchUnread(ctx context.Context) ([]model.Item, error)
	MarkRead(ctx context.Context, id model.ItemID) error
	SoftDelete(ctx context.Context, id model.ItemID) error
}

// Store remembers which items were reviewed.
type Store interface {
	HasReviewed(ctx context.Context, id model.ItemID) (bool, error)
	SaveReview(ctx context.Context, r model.Review) error
}

// Classifier returns a verdict for item text.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Verdict, error)
}

// Labeler tags an item with a label.
type Labeler interface {
	AddLabel(ctx context.Context, id model.ItemID, label string) error
}

// Rules exempts items from classification.
type Rules interface {
	Match(item model.Item) (model.Rule, bool)
}

// Deps are the collaborators of a Processor. Labeler, Rules and Observer
// are optional.
type Deps struct {
	Source     Source
	Store      Store
	Classifier Classifier
	Labeler    Labeler
	Rules      Rules
	Observer   Observer
	Log        *slog.Logger
}

// Options control decisions made for each item.
type Options struct {
	Threshold   float64
	Mode        model.Mode
	DryRun      bool
	Concurrency int
	SpamLabel   string
}

// Processor runs the per-item procedure over a batch of items.
type Processor struct {
	deps Deps
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// New creates a Processor.
func New(deps Deps, opts Options) *Processor {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if deps.Observer == nil {
		deps.Observer = Nop{}
	}
	log := deps.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		deps: deps,
		opts: opts,
		log:  log.With("component", "pipeline"),
		now:  time.Now,
	}
}

// RunOnce fetches every unread item and processes it. Only a fetch
// failure is returned; per-item failures are counted in the summary.
func (p *Processor) RunOnce(ctx context.Context) (model.RunSummary, error) {
	items, err := p.deps.Source.FetchUnread(ctx)
	if err != nil {
		return model.RunSummary{}, &StageError{Stage: StageFetch, Err: err}
	}
	return p.Process(ctx, items), nil
}

// Process runs the per-item procedure for items with bounded concurrency.
func (p *Processor) Process(ctx context.Context, items []model.Item) model.RunSummary {
	runID := uuid.NewString()
	log := p.log.With("run_id", runID)

	summary := model.RunSummary{RunID: runID, Total: len(items), StartedAt: p.now()}
	p.deps.Observer.RunStarted(runID, len(items))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.opts.Concurrency)

	for _, item := range items {
		g.Go(func() error {
			outcome, err := p.processItem(ctx, log, item)

			mu.Lock()
			if err != nil {
				summary.Errors++
			} else {
				summary.Add(outcome)
			}
			mu.Unlock()

			p.deps.Observer.ItemDone(model.ItemEvent{
				RunID:   runID,
				ItemID:  item.ID,
				Title:   item.Title,
				Outcome: outcome,
				Err:     err,
			})
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = p.now()
	log.Info("processor run done", "summary", summary.String())
	p.deps.Observer.RunDone(summary)
	return summary
}

func (p *Processor) processItem(ctx context.Context, log *slog.Logger, item model.Item) (model.Outcome, error) {
	log = log.With("item_id", item.ID, "title", item.Title)

	reviewed, err := p.deps.Store.HasReviewed(ctx, item.ID)
	if err != nil {
		return p.fail(log, StageDedup, item.ID, err)
	}
	if reviewed {
		log.Debug("item already reviewed")
		return model.OutcomeSkippedExists, nil
	}

	if p.deps.Rules != nil {
		if rule, ok := p.deps.Rules.Match(item); ok {
			log.Debug("item exempt by rule", "kind", rule.Kind, "scope", rule.Scope, "value", rule.Value)
			return model.OutcomeKept, nil
		}
	}

	text := content.ReviewText(item)
	verdict, err := p.deps.Classifier.Classify(ctx, text)
	if err != nil {
		return p.fail(log, StageClassify, item.ID, err)
	}

	review := model.Review{
		ItemID:      item.ID,
		Title:       item.Title,
		URL:         item.URL,
		Fingerprint: content.Fingerprint(text),
		IsAd:        verdict.IsAd,
		Confidence:  verdict.Confidence,
		Reason:      verdict.Reason,
		ReviewedAt:  p.now().UTC(),
	}
	if err := p.deps.Store.SaveReview(ctx, review); err != nil {
		return p.fail(log, StagePersist, item.ID, err)
	}

	if !p.actionable(verdict) {
		log.Debug("item kept", "is_ad", verdict.IsAd, "confidence", verdict.Confidence)
		return model.OutcomeKept, nil
	}
	if p.opts.DryRun {
		log.Info("would act on ad", "confidence", verdict.Confidence, "reason", verdict.Reason, "mode", p.opts.Mode)
		return model.OutcomeWouldAct, nil
	}

	outcome, err := p.remediate(ctx, log, item.ID)
	if err != nil {
		se := &StageError{Stage: StageRemediate, ItemID: item.ID, Err: err}
		log.Error("remediation failed after verdict saved", "stage", StageRemediate, "error", err)
		return outcome, se
	}
	log.Info("ad remediated", "outcome", outcome, "confidence", verdict.Confidence, "reason", verdict.Reason)
	return outcome, nil
}

func (p *Processor) actionable(v model.Verdict) bool {
	return v.IsAd && v.Confidence >= p.opts.Threshold
}

func (p *Processor) remediate(ctx context.Context, log *slog.Logger, id model.ItemID) (model.Outcome, error) {
	switch p.opts.Mode {
	case model.ModeMarkRead:
		return model.OutcomeMarkedRead, p.deps.Source.MarkRead(ctx, id)
	case model.ModeLabel:
		if p.deps.Labeler == nil {
			log.Warn("label mode without labeler, marking read instead")
			return model.OutcomeMarkedRead, p.deps.Source.MarkRead(ctx, id)
		}
		if err := p.deps.Labeler.AddLabel(ctx, id, p.opts.SpamLabel); err != nil {
			return model.OutcomeLabeled, err
		}
		return model.OutcomeLabeled, p.deps.Source.MarkRead(ctx, id)
	default:
		return model.OutcomeDeleted, p.deps.Source.SoftDelete(ctx, id)
	}
}

func (p *Processor) fail(log *slog.Logger, stage Stage, id model.ItemID, err error) (model.Outcome, error) {
	log.Warn("item failed", "stage", stage, "error", err)
	return 0, &StageError{Stage: stage, ItemID: id, Err: err}
}
