package progress

import (
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
)

// PrometheusSink records stage durations into the process metrics registry.
type PrometheusSink struct{}

// NewPrometheusSink wires the metrics registry to the sink interface.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{}
}

// Consume observes the stage duration on done events.
func (PrometheusSink) Consume(e Event) {
	if e.Kind != KindDone {
		return
	}
	metrics.ObserveStage(string(e.Stage), e.Dur)
}
