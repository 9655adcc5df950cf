// Package progress defines the events emitted by a pipeline run and the
// sinks that consume them.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes which pipeline phase an Event belongs to.
type Stage string

// Pipeline stages, in run order.
const (
	StageValidate  Stage = "validate"
	StageCrawl     Stage = "crawl"
	StageResolve   Stage = "resolve"
	StageGenerate  Stage = "generate"
	StageReconcile Stage = "reconcile"
	StagePublish   Stage = "publish"
)

// Kind distinguishes the three milestones a stage can report.
type Kind string

// Supported event kinds. A Note carries a user-facing line without ending
// the stage; Done carries the stage duration.
const (
	KindStart Kind = "start"
	KindNote  Kind = "note"
	KindDone  Kind = "done"
)

// Event captures a single milestone of one pipeline run.
type Event struct {
	// RunID correlates the event with a broker session.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage is the pipeline phase the event belongs to.
	Stage Stage
	// Kind is the milestone within the stage.
	Kind Kind
	// Message is the user-facing progress line, set on note events.
	Message string
	// Count carries a stage-specific quantity (pages crawled, items
	// created) when one applies.
	Count int
	// Dur is the stage duration, set on done events.
	Dur time.Duration
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageValidate, StageCrawl, StageResolve, StageGenerate, StageReconcile, StagePublish:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	switch e.Kind {
	case KindStart, KindDone:
	case KindNote:
		if e.Message == "" {
			return errors.New("note requires a message")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
