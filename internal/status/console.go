// Package status renders pipeline progress on the terminal and over HTTP.
package status

import (
	"fmt"
	"io"
	"sync"
	"time"

	"freshrss_filter/internal/model"
)

const maxTitleRunes = 60

// Console prints one line per processed item and a summary per run.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	done  int
	total int
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// RunStarted implements pipeline.Observer.
func (c *Console) RunStarted(runID string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done, c.total = 0, total
	fmt.Fprintf(c.w, "run %s: %d unread items\n", runID, total)
}

// ItemDone implements pipeline.Observer.
func (c *Console) ItemDone(ev model.ItemEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done++
	title := truncate(ev.Title, maxTitleRunes)
	if ev.Err != nil {
		fmt.Fprintf(c.w, "%s %d/%d %-14s %s: %v\n", marker(ev), c.done, c.total, "error", title, ev.Err)
		return
	}
	fmt.Fprintf(c.w, "%s %d/%d %-14s %s\n", marker(ev), c.done, c.total, ev.Outcome, title)
}

// RunDone implements pipeline.Observer.
func (c *Console) RunDone(s model.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "run %s done in %s: %s\n", s.RunID, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond), s)
}

func marker(ev model.ItemEvent) string {
	if ev.Err != nil {
		return "[!]"
	}
	switch {
	case ev.Outcome == model.OutcomeKept:
		return "[+]"
	case ev.Outcome.Acted():
		return "[-]"
	case ev.Outcome == model.OutcomeWouldAct:
		return "[~]"
	default:
		return "[=]"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
