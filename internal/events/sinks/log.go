// Package sinks provides Sink implementations for the events hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/events"
)

// LogSink emits structured logs for every registration event.
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

// Consume logs the event with structured fields.
func (s *LogSink) Consume(_ context.Context, evt events.Event) error {
	s.logger.Info("registration event",
		zap.String("batch_id", evt.BatchID),
		zap.String("day", evt.Day),
		zap.Int("row", evt.Row),
		zap.String("stage", string(evt.Stage)),
		zap.Int("attempt", evt.Attempt),
		zap.String("note", evt.Note),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
