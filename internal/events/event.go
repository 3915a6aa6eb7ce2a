// Package events defines the progress events emitted by day workers and the
// hub that fans them out to sinks.
package events

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported stages.
const (
	StageDayStart    Stage = "DAY_START"
	StageDayDone     Stage = "DAY_DONE"
	StageDayError    Stage = "DAY_ERROR"
	StageRowSuccess  Stage = "ROW_SUCCESS"
	StageRowRetry    Stage = "ROW_RETRY"
	StageRowFailed   Stage = "ROW_FAILED"
	StageRowManual   Stage = "ROW_MANUAL"
	StageSessionFull Stage = "SESSION_FULL"
)

// Event captures one registration milestone. Row is the registrant row index
// or -1 for day-scoped events. ChannelID scopes operator-facing sinks to the
// chat that started the batch.
type Event struct {
	BatchID   string
	ChannelID int64
	Day       string
	Row       int
	Stage     Stage
	Attempt   int
	Max       int
	Note      string
	TS        time.Time
}

// Validate performs coarse validation before an event enters the hub.
func (e Event) Validate() error {
	if e.Day == "" {
		return errors.New("day label is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageDayStart, StageDayDone, StageDayError, StageSessionFull:
	case StageRowSuccess, StageRowRetry, StageRowFailed, StageRowManual:
		if e.Row < 0 {
			return fmt.Errorf("stage %q requires a row index", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	return nil
}
