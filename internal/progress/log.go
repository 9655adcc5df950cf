package progress

import (
	"go.uber.org/zap"
)

// LogSink emits structured logs for pipeline events. It is useful during
// development or audits where the console lines are too terse.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event using structured fields.
func (s *LogSink) Consume(e Event) {
	fields := []zap.Field{
		zap.String("run_id", e.RunID),
		zap.String("stage", string(e.Stage)),
		zap.String("kind", string(e.Kind)),
	}
	if e.Message != "" {
		fields = append(fields, zap.String("message", e.Message))
	}
	if e.Count > 0 {
		fields = append(fields, zap.Int("count", e.Count))
	}
	if e.Kind == KindDone {
		fields = append(fields, zap.Duration("dur", e.Dur))
	}
	s.logger.Debug("pipeline progress", fields...)
}
