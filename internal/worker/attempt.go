package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/events"
	"github.com/hvnguyen/popmart-registrar/internal/pending"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
)

type rowStatus int

const (
	// rowDone covers every terminal state of a row except a full session:
	// success, failure, exhaustion, and manual suspension.
	rowDone rowStatus = iota
	// rowSessionFull tells the day driver to stop submitting later rows.
	rowSessionFull
)

// runRow drives one registrant through the bounded attempt loop. Every
// attempt starts with a fresh challenge: the site binds each captcha to a
// single submission and expires it quickly, so reuse is never safe.
func (w *Worker) runRow(ctx context.Context, batchID string, channelID int64, day, dayID, sessionID string, row registration.Row) rowStatus {
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return rowDone
		}
		image, err := w.freshChallenge(ctx)
		if err != nil {
			w.emit(batchID, channelID, day, row.Index, events.StageRowFailed, attempt, "captcha unavailable: "+err.Error())
			return rowDone
		}

		if w.solver == nil {
			w.suspendManual(ctx, batchID, channelID, day, dayID, sessionID, row, image)
			return rowDone
		}

		answer, err := w.solver.Solve(ctx, image)
		if err != nil {
			if ctx.Err() != nil {
				return rowDone
			}
			note := "solver error: " + err.Error()
			if errors.Is(err, registration.ErrNoAnswer) {
				note = "solver timed out"
			}
			w.emit(batchID, channelID, day, row.Index, events.StageRowRetry, attempt, note)
			continue
		}

		outcome, response, err := w.submit(ctx, dayID, sessionID, row, answer)
		if err != nil {
			if ctx.Err() != nil {
				return rowDone
			}
			w.emit(batchID, channelID, day, row.Index, events.StageRowRetry, attempt, "submit failed: "+err.Error())
			continue
		}
		switch outcome {
		case registration.OutcomeSuccess:
			w.emit(batchID, channelID, day, row.Index, events.StageRowSuccess, attempt, "")
			return rowDone
		case registration.OutcomeSessionFull:
			return rowSessionFull
		case registration.OutcomeCaptchaRejected:
			w.emit(batchID, channelID, day, row.Index, events.StageRowRetry, attempt, "captcha rejected by server")
			continue
		default:
			// Unrecognized response: stop instead of resubmitting against an
			// unknown failure mode.
			w.emit(batchID, channelID, day, row.Index, events.StageRowFailed, attempt, "unrecognized response: "+truncate(response, 200))
			return rowDone
		}
	}
	w.emit(batchID, channelID, day, row.Index, events.StageRowFailed, w.cfg.MaxAttempts,
		fmt.Sprintf("no success after %d attempts", w.cfg.MaxAttempts))
	return rowDone
}

// suspendManual publishes the challenge to the operator channel and parks
// the row in the pending store. The manual path does not consume the retry
// budget and allows a single answer; a wrong answer ends the row until the
// operator re-initiates.
func (w *Worker) suspendManual(ctx context.Context, batchID string, channelID int64, day, dayID, sessionID string, row registration.Row, image []byte) {
	caption := fmt.Sprintf("[%s] Row %d: reply to this message with the captcha text.", day, row.Index+1)
	messageID, err := w.messenger.SendImage(ctx, channelID, image, caption)
	if err != nil {
		w.logger.Error("manual captcha delivery failed", zap.String("day", day), zap.Int("row", row.Index), zap.Error(err))
		w.emit(batchID, channelID, day, row.Index, events.StageRowFailed, 0, "could not deliver captcha image: "+err.Error())
		return
	}
	w.pendings.Put(pending.Task{
		Key:       pending.Key{ChannelID: channelID, DayLabel: day, RowIndex: row.Index},
		DayID:     dayID,
		SessionID: sessionID,
		Row:       row,
		MessageID: messageID,
	})
	w.emit(batchID, channelID, day, row.Index, events.StageRowManual, 0, "awaiting operator reply")
}

// SubmitManual finishes a popped manual task with the operator-supplied
// captcha text and reports the classified result to the task's channel.
func (w *Worker) SubmitManual(ctx context.Context, task pending.Task, answer string) {
	channelID := task.Key.ChannelID
	day := task.Key.DayLabel
	outcome, response, err := w.submit(ctx, task.DayID, task.SessionID, task.Row, answer)
	if err != nil {
		w.emit("", channelID, day, task.Row.Index, events.StageRowFailed, 1, "submit failed: "+err.Error())
		return
	}
	switch outcome {
	case registration.OutcomeSuccess:
		w.emit("", channelID, day, task.Row.Index, events.StageRowSuccess, 1, "")
	case registration.OutcomeSessionFull:
		w.emit("", channelID, day, task.Row.Index, events.StageSessionFull, 1, "")
	case registration.OutcomeCaptchaRejected:
		w.emit("", channelID, day, task.Row.Index, events.StageRowFailed, 1, "wrong or expired captcha; resend the sheet to retry this row")
	default:
		w.emit("", channelID, day, task.Row.Index, events.StageRowFailed, 1, "unrecognized response: "+truncate(response, 200))
	}
}

func (w *Worker) freshChallenge(ctx context.Context) ([]byte, error) {
	ref, err := w.gateway.FetchCaptcha(ctx)
	if err != nil {
		return nil, err
	}
	return w.gateway.DownloadImage(ctx, ref)
}

func (w *Worker) submit(ctx context.Context, dayID, sessionID string, row registration.Row, captcha string) (registration.Outcome, string, error) {
	payload := registration.BuildPayload(dayID, sessionID, row, captcha)
	response, err := w.gateway.SubmitRegistration(ctx, payload)
	if err != nil {
		return registration.OutcomeOtherFailure, "", err
	}
	return registration.Classify(response), response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
