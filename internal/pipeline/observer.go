package pipeline

import "freshrss_filter/internal/model"

// Observer receives progress events. Calls for one run may arrive from
// several goroutines; implementations must be safe for concurrent use and
// must not block for long.
type Observer interface {
	RunStarted(runID string, total int)
	ItemDone(ev model.ItemEvent)
	RunDone(summary model.RunSummary)
}

// Observers fans events out to each non-nil observer in order.
type Observers []Observer

// RunStarted implements Observer.
func (o Observers) RunStarted(runID string, total int) {
	for _, obs := range o {
		if obs != nil {
			obs.RunStarted(runID, total)
		}
	}
}

// ItemDone implements Observer.
func (o Observers) ItemDone(ev model.ItemEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.ItemDone(ev)
		}
	}
}

// RunDone implements Observer.
func (o Observers) RunDone(summary model.RunSummary) {
	for _, obs := range o {
		if obs != nil {
			obs.RunDone(summary)
		}
	}
}

// Nop ignores every event.
type Nop struct{}

func (Nop) RunStarted(string, int) {}

func (Nop) ItemDone(model.ItemEvent) {}

func (Nop) RunDone(model.RunSummary) {}
