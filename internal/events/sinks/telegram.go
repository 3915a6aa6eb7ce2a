package sinks

import (
	"context"
	"fmt"

	"github.com/hvnguyen/popmart-registrar/internal/events"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
)

// TelegramSink forwards operator-relevant milestones to the chat that
// started the batch. Events without a channel are dropped silently.
type TelegramSink struct {
	messenger registration.Messenger
}

// NewTelegramSink wires a Messenger to the sink interface.
func NewTelegramSink(messenger registration.Messenger) *TelegramSink {
	return &TelegramSink{messenger: messenger}
}

// Consume renders the event as a chat message. Retry events are suppressed
// to keep chat noise proportional to outcomes, not attempts.
func (s *TelegramSink) Consume(ctx context.Context, evt events.Event) error {
	if s.messenger == nil || evt.ChannelID == 0 {
		return nil
	}
	text := format(evt)
	if text == "" {
		return nil
	}
	return s.messenger.SendText(ctx, evt.ChannelID, text)
}

// Close implements the Sink interface; it performs no action.
func (s *TelegramSink) Close(context.Context) error {
	return nil
}

func format(evt events.Event) string {
	switch evt.Stage {
	case events.StageRowSuccess:
		return fmt.Sprintf("✅ [%s] row %d registered (attempt %d/%d)", evt.Day, evt.Row+1, evt.Attempt, evt.Max)
	case events.StageRowFailed:
		return fmt.Sprintf("⏭️ [%s] row %d skipped after %d attempts. %s", evt.Day, evt.Row+1, evt.Max, evt.Note)
	case events.StageRowManual:
		return ""
	case events.StageSessionFull:
		return fmt.Sprintf("🚫 [%s] session full at row %d; remaining rows for this day were not submitted", evt.Day, evt.Row+1)
	case events.StageDayError:
		return fmt.Sprintf("❌ [%s] %s", evt.Day, evt.Note)
	case events.StageDayDone:
		if evt.Note != "" {
			return fmt.Sprintf("[%s] %s", evt.Day, evt.Note)
		}
		return ""
	default:
		return ""
	}
}
