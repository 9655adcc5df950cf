package progress

import (
	"fmt"
	"time"
)

// Sink consumes pipeline events. Implementations must tolerate events
// arriving for stages they do not care about.
type Sink interface {
	Consume(Event)
}

// Reporter fans events out to its sinks in registration order, stamping the
// run id and a UTC timestamp on each. A nil Reporter discards everything.
type Reporter struct {
	runID string
	sinks []Sink
	now   func() time.Time
}

// NewReporter builds a Reporter stamping runID on every event.
func NewReporter(runID string, sinks ...Sink) *Reporter {
	return &Reporter{runID: runID, sinks: sinks, now: time.Now}
}

// Start reports that a stage has begun.
func (r *Reporter) Start(stage Stage) {
	r.emit(Event{Stage: stage, Kind: KindStart})
}

// Note reports a user-facing progress line within a stage.
func (r *Reporter) Note(stage Stage, format string, args ...any) {
	r.emit(Event{Stage: stage, Kind: KindNote, Message: fmt.Sprintf(format, args...)})
}

// CountNote reports a progress line that also carries a quantity.
func (r *Reporter) CountNote(stage Stage, count int, format string, args ...any) {
	r.emit(Event{Stage: stage, Kind: KindNote, Count: count, Message: fmt.Sprintf(format, args...)})
}

// Done reports that a stage finished, with its duration.
func (r *Reporter) Done(stage Stage, dur time.Duration) {
	r.emit(Event{Stage: stage, Kind: KindDone, Dur: dur})
}

func (r *Reporter) emit(e Event) {
	if r == nil {
		return
	}
	e.RunID = r.runID
	e.TS = r.now().UTC()
	for _, s := range r.sinks {
		s.Consume(e)
	}
}
