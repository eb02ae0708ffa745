// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"time"
)

// ItemID identifies a feed item. Aggregators hand out integers, but the
// value is only ever compared and stored, never used arithmetically.
type ItemID string

// Item is one unread entry fetched from the aggregator.
type Item struct {
	ID        ItemID
	Title     string
	Author    string
	Content   string
	HTML      string
	URL       string
	CreatedAt *time.Time
}

// Verdict is the classifier's answer for a single item.
type Verdict struct {
	IsAd       bool    `json:"is_ad"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Review is the persisted record proving an item has been classified.
type Review struct {
	ItemID      ItemID
	Title       string
	URL         string
	Fingerprint string
	IsAd        bool
	Confidence  float64
	Reason      string
	ReviewedAt  time.Time
}

// Mode selects what happens to an item classified as an ad.
type Mode int

// Supported remediation modes.
const (
	ModeMarkRead Mode = iota
	ModeLabel
	ModeDelete
)

// ParseMode resolves a configured mode name. Empty means mark_read and
// any unrecognised value falls through to soft-delete.
func ParseMode(s string) Mode {
	switch s {
	case "", "mark_read":
		return ModeMarkRead
	case "label":
		return ModeLabel
	default:
		return ModeDelete
	}
}

func (m Mode) String() string {
	switch m {
	case ModeMarkRead:
		return "mark_read"
	case ModeLabel:
		return "label"
	case ModeDelete:
		return "delete"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Outcome is the terminal state of one item in a pipeline run.
type Outcome int

// Item outcomes.
const (
	OutcomeSkippedExists Outcome = iota
	OutcomeKept
	OutcomeMarkedRead
	OutcomeLabeled
	OutcomeDeleted
	OutcomeWouldAct
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkippedExists:
		return "skipped_exists"
	case OutcomeKept:
		return "kept"
	case OutcomeMarkedRead:
		return "marked_read"
	case OutcomeLabeled:
		return "labeled"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeWouldAct:
		return "would_act"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Acted reports whether the outcome involved a remediation call.
func (o Outcome) Acted() bool {
	return o == OutcomeMarkedRead || o == OutcomeLabeled || o == OutcomeDeleted
}

// RunSummary aggregates the outcomes of one pipeline run.
type RunSummary struct {
	RunID         string
	Total         int
	SkippedExists int
	Kept          int
	MarkedRead    int
	Labeled       int
	Deleted       int
	WouldAct      int
	Errors        int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Add counts one item outcome.
func (s *RunSummary) Add(o Outcome) {
	switch o {
	case OutcomeSkippedExists:
		s.SkippedExists++
	case OutcomeKept:
		s.Kept++
	case OutcomeMarkedRead:
		s.MarkedRead++
	case OutcomeLabeled:
		s.Labeled++
	case OutcomeDeleted:
		s.Deleted++
	case OutcomeWouldAct:
		s.WouldAct++
	}
}

// Reviewed returns the number of items that reached a non-error outcome.
func (s RunSummary) Reviewed() int {
	return s.SkippedExists + s.Kept + s.MarkedRead + s.Labeled + s.Deleted + s.WouldAct
}

// Acted returns the number of items a remediation call was made for.
func (s RunSummary) Acted() int {
	return s.MarkedRead + s.Labeled + s.Deleted
}

func (s RunSummary) String() string {
	return fmt.Sprintf("reviewed_items=%d/%d kept=%d marked_read=%d labeled=%d deleted=%d skipped=%d would_act=%d errors=%d",
		s.Reviewed(), s.Total, s.Kept, s.MarkedRead, s.Labeled, s.Deleted, s.SkippedExists, s.WouldAct, s.Errors)
}

// ItemEvent reports the end of one item's processing to observers.
// Err is set when the item failed; Outcome is meaningless in that case.
type ItemEvent struct {
	RunID   string
	ItemID  ItemID
	Title   string
	Outcome Outcome
	Err     error
}

// RuleKind defines how a skip rule matches.
type RuleKind string

// Supported rule kinds.
const (
	RuleContains RuleKind = "contains"
	RuleRegex    RuleKind = "regex"
)

// RuleScope defines which part of an item a rule matches against.
type RuleScope string

// Supported rule scopes.
const (
	ScopeTitle   RuleScope = "title"
	ScopeContent RuleScope = "content"
	ScopeAll     RuleScope = "all"
)

// Rule exempts matching items from classification.
type Rule struct {
	Kind  RuleKind  `yaml:"kind"`
	Scope RuleScope `yaml:"scope"`
	Value string    `yaml:"value"`
}
