// Package worker implements the per-day registration driver and the per-row
// captcha attempt loop.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/clock/system"
	"github.com/hvnguyen/popmart-registrar/internal/events"
	"github.com/hvnguyen/popmart-registrar/internal/pending"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
	"github.com/hvnguyen/popmart-registrar/internal/registry"
)

// Config controls Worker behavior.
type Config struct {
	MaxAttempts int
}

// Worker drives one claimed sales day at a time: resolves the day id, picks
// the target session, and walks the assigned rows through the attempt loop
// strictly in order.
type Worker struct {
	gateway   registration.Gateway
	solver    registration.Solver
	pendings  *pending.Store
	registry  *registry.Registry
	hub       *events.Hub
	messenger registration.Messenger
	clock     registration.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. A nil solver disables automatic solving; every
// row then goes through the manual captcha flow.
func New(
	gateway registration.Gateway,
	solver registration.Solver,
	pendings *pending.Store,
	reg *registry.Registry,
	hub *events.Hub,
	messenger registration.Messenger,
	clock registration.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		gateway:   gateway,
		solver:    solver,
		pendings:  pendings,
		registry:  reg,
		hub:       hub,
		messenger: messenger,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessDay runs one claimed day to completion. The claim is released
// exactly once no matter how the run ends; only day-level failures (page
// unreachable, id unresolved, session list error) count as failed for the
// retry-on-failure policy.
func (w *Worker) ProcessDay(ctx context.Context, batchID string, channelID int64, day string, rows []registration.Row) {
	failed := false
	defer func() { w.registry.Release(day, failed) }()

	w.emit(batchID, channelID, day, -1, events.StageDayStart, 0, "")

	html, err := w.gateway.FetchFormPage(ctx)
	if err != nil {
		failed = true
		w.logger.Error("form page fetch failed", zap.String("day", day), zap.Error(err))
		w.emit(batchID, channelID, day, -1, events.StageDayError, 0, "form page unreachable: "+err.Error())
		return
	}
	dayID, ok := w.gateway.MapLabelToID(html, day)
	if !ok {
		failed = true
		w.emit(batchID, channelID, day, -1, events.StageDayError, 0, "day id not found on form")
		return
	}
	sessions, err := w.gateway.LoadSessions(ctx, dayID)
	if err != nil {
		failed = true
		w.logger.Error("session list failed", zap.String("day", day), zap.Error(err))
		w.emit(batchID, channelID, day, -1, events.StageDayError, 0, "session list unavailable: "+err.Error())
		return
	}
	if len(sessions) == 0 {
		w.emit(batchID, channelID, day, -1, events.StageDayDone, 0, "no sessions open for registration")
		return
	}

	session := selectSession(sessions, rows)
	w.logger.Info("processing day",
		zap.String("day", day),
		zap.String("day_id", dayID),
		zap.String("session", session.Label),
		zap.Int("rows", len(rows)),
	)

	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}
		if w.runRow(ctx, batchID, channelID, day, dayID, session.ID, row) == rowSessionFull {
			w.emit(batchID, channelID, day, row.Index, events.StageSessionFull, 0, "")
			break
		}
	}
	w.emit(batchID, channelID, day, -1, events.StageDayDone, 0, "")
}

// selectSession is computed once per day and applied to every row: the first
// row naming a session that exists on the form wins, otherwise the first
// session in form order. A later row naming a different session does not
// re-resolve the choice.
func selectSession(sessions []registration.Session, rows []registration.Row) registration.Session {
	for _, row := range rows {
		if row.SessionName == "" {
			continue
		}
		for _, s := range sessions {
			if s.Label == row.SessionName {
				return s
			}
		}
	}
	return sessions[0]
}

func (w *Worker) emit(batchID string, channelID int64, day string, row int, stage events.Stage, attempt int, note string) {
	if w.hub == nil {
		return
	}
	w.hub.Emit(events.Event{
		BatchID:   batchID,
		ChannelID: channelID,
		Day:       day,
		Row:       row,
		Stage:     stage,
		Attempt:   attempt,
		Max:       w.cfg.MaxAttempts,
		Note:      note,
		TS:        w.clock.Now(),
	})
}
