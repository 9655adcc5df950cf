package progress

import (
	"fmt"
	"io"
)

// ConsoleSink prints note events as the terse "- ..." lines the CLI shows
// while a run is underway. Start and done events are not printed.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink wires an output stream to the sink interface.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = io.Discard
	}
	return &ConsoleSink{out: out}
}

// Consume prints the event's message when it carries one.
func (s *ConsoleSink) Consume(e Event) {
	if e.Kind != KindNote {
		return
	}
	fmt.Fprintf(s.out, "- %s\n", e.Message)
}
