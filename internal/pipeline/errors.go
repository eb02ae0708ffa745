package pipeline

import (
	"fmt"

	"freshrss_filter/internal/model"
)

// Stage names the step of the per-item procedure that failed.
type Stage string

// Pipeline stages that can fail.
const (
	StageFetch     Stage = "fetch"
	StageDedup     Stage = "dedup"
	StageClassify  Stage = "classify"
	StagePersist   Stage = "persist"
	StageRemediate Stage = "remediate"
)

// StageError wraps a failure with the stage and item it happened in.
// ItemID is empty for StageFetch.
type StageError struct {
	Stage  Stage
	ItemID model.ItemID
	Err    error
}

func (e *StageError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s item %s: %v", e.Stage, e.ItemID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
