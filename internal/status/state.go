package status

import (
	"sync"

	"freshrss_filter/internal/model"
)

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	Running bool
	RunID   string
	Done    int
	Total   int
	Last    *model.RunSummary
}

// State keeps live progress and the summary of the last finished run.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState creates an empty State.
func NewState() *State {
	return &State{}
}

// RunStarted implements pipeline.Observer.
func (s *State) RunStarted(runID string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Running = true
	s.snap.RunID = runID
	s.snap.Done = 0
	s.snap.Total = total
}

// ItemDone implements pipeline.Observer.
func (s *State) ItemDone(model.ItemEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Done++
}

// RunDone implements pipeline.Observer.
func (s *State) RunDone(summary model.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Running = false
	s.snap.Last = &summary
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	if snap.Last != nil {
		last := *snap.Last
		snap.Last = &last
	}
	return snap
}
