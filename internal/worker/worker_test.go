package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/events"
	"github.com/hvnguyen/popmart-registrar/internal/pending"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
	"github.com/hvnguyen/popmart-registrar/internal/registry"
)

const successResponse = "!!!True|~~|ok"

type harness struct {
	gateway   *fakeGateway
	solver    *fakeSolver
	messenger *fakeMessenger
	registry  *registry.Registry
	pendings  *pending.Store
	sink      *captureSink
	hub       *events.Hub
	worker    *Worker
}

// newHarness wires a Worker against fakes. A nil solver puts the worker in
// manual mode.
func newHarness(t *testing.T, gw *fakeGateway, solver *fakeSolver, maxAttempts int) *harness {
	t.Helper()
	h := &harness{
		gateway:   gw,
		solver:    solver,
		messenger: &fakeMessenger{},
		registry:  registry.New(false),
		pendings:  pending.NewStore(),
		sink:      &captureSink{},
	}
	h.hub = events.NewHub(events.Config{}, h.sink)
	var s registration.Solver
	if solver != nil {
		s = solver
	}
	h.worker = New(gw, s, h.pendings, h.registry, h.hub, h.messenger, fixedClock{now: time.Now()},
		Config{MaxAttempts: maxAttempts}, zap.NewNop())
	return h
}

// drain flushes buffered events so sink assertions are deterministic.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.hub.Close(ctx))
}

func singleDayGateway(responses ...string) *fakeGateway {
	return &fakeGateway{
		html:      "<select id=\"slNgayBanHang\"></select>",
		dayIDs:    map[string]string{"24/12/2024": "9"},
		sessions:  []registration.Session{{ID: "s1", Label: "Morning"}},
		responses: responses,
	}
}

func TestProcessDaySuccessFirstAttempt(t *testing.T) {
	t.Parallel()
	gw := singleDayGateway(successResponse)
	h := newHarness(t, gw, &fakeSolver{answers: []string{"abcd"}}, 4)
	h.registry.Claim([]string{"24/12/2024"})

	h.worker.ProcessDay(context.Background(), "batch", 7, "24/12/2024", []registration.Row{{Index: 0, FullName: "A"}})
	h.drain(t)

	require.Equal(t, 1, gw.captchaFetches)
	require.Equal(t, 1, gw.submitCount())
	require.Equal(t, "abcd", gw.submits[0]["Captcha"])

	successes := h.sink.byStage(events.StageRowSuccess)
	require.Len(t, successes, 1)
	require.Equal(t, 1, successes[0].Attempt)
	require.Equal(t, registration.DayCompleted, h.registry.State("24/12/2024"))
}

func TestProcessDaySessionFullStopsRemainingRows(t *testing.T) {
	t.Parallel()
	gw := singleDayGateway(successResponse, "Phiên đã đủ số lượng")
	h := newHarness(t, gw, &fakeSolver{answers: []string{"abcd"}}, 4)
	h.registry.Claim([]string{"24/12/2024"})

	rows := []registration.Row{{Index: 0}, {Index: 1}, {Index: 2}, {Index: 3}, {Index: 4}}
	h.worker.ProcessDay(context.Background(), "batch", 7, "24/12/2024", rows)
	h.drain(t)

	// Row 0 succeeded, row 1 hit the capacity wall; rows 2..4 never reached
	// the gateway.
	require.Equal(t, 2, gw.submitCount())
	require.Equal(t, 2, gw.captchaFetches)

	full := h.sink.byStage(events.StageSessionFull)
	require.Len(t, full, 1)
	require.Equal(t, 1, full[0].Row)
	require.Equal(t, registration.DayCompleted, h.registry.State("24/12/2024"))
}

func TestProcessDayUnresolvedDayID(t *testing.T) {
	t.Parallel()
	gw := singleDayGateway()
	h := newHarness(t, gw, &fakeSolver{}, 4)
	h.registry.Claim([]string{"31/12/2024"})

	h.worker.ProcessDay(context.Background(), "batch", 7, "31/12/2024", []registration.Row{{Index: 0}})
	h.drain(t)

	errsEvt := h.sink.byStage(events.StageDayError)
	require.Len(t, errsEvt, 1)
	require.Contains(t, errsEvt[0].Note, "day id not found")
	require.Zero(t, gw.submitCount())
	// Never-retry policy seals the day even on failure.
	require.Equal(t, registration.DayCompleted, h.registry.State("31/12/2024"))
}

func TestProcessDayNoSessions(t *testing.T) {
	t.Parallel()
	gw := singleDayGateway()
	gw.sessions = nil
	h := newHarness(t, gw, &fakeSolver{}, 4)
	h.registry.Claim([]string{"24/12/2024"})

	h.worker.ProcessDay(context.Background(), "batch", 7, "24/12/2024", []registration.Row{{Index: 0}})
	h.drain(t)

	done := h.sink.byStage(events.StageDayDone)
	require.Len(t, done, 1)
	require.Contains(t, done[0].Note, "no sessions")
	require.Empty(t, h.sink.byStage(events.StageDayError))
	require.Zero(t, gw.submitCount())
}

func TestProcessDayFormPageFailureReleasesForRetryPolicy(t *testing.T) {
	t.Parallel()
	gw := singleDayGateway()
	gw.pageErr = errors.New("connection refused")

	h := &harness{
		gateway:   gw,
		messenger: &fakeMessenger{},
		registry:  registry.New(true),
		pendings:  pending.NewStore(),
		sink:      &captureSink{},
	}
	h.hub = events.NewHub(events.Config{}, h.sink)
	h.worker = New(gw, &fakeSolver{}, h.pendings, h.registry, h.hub, h.messenger, nil, Config{MaxAttempts: 4}, zap.NewNop())

	h.registry.Claim([]string{"24/12/2024"})
	h.worker.ProcessDay(context.Background(), "batch", 7, "24/12/2024", []registration.Row{{Index: 0}})
	h.drain(t)

	// Day-level failure under retry-on-failure goes back to the pool.
	require.Equal(t, registration.DayPending, h.registry.State("24/12/2024"))
}

func TestSelectSessionFirstMatchWinsForWholeDay(t *testing.T) {
	t.Parallel()
	gw := singleDayGateway(successResponse, successResponse)
	gw.sessions = []registration.Session{
		{ID: "s1", Label: "Morning"},
		{ID: "s2", Label: "Afternoon"},
	}
	h := newHarness(t, gw, &fakeSolver{answers: []string{"a", "b"}}, 4)
	h.registry.Claim([]string{"24/12/2024"})

	// Row 0 names Afternoon; row 1 names Morning. The first named match is
	// resolved once and applied to every row of the day.
	rows := []registration.Row{
		{Index: 0, SessionName: "Afternoon"},
		{Index: 1, SessionName: "Morning"},
	}
	h.worker.ProcessDay(context.Background(), "batch", 7, "24/12/2024", rows)
	h.drain(t)

	require.Equal(t, 2, gw.submitCount())
	require.Equal(t, "s2", gw.submits[0]["idPhien"])
	require.Equal(t, "s2", gw.submits[1]["idPhien"])
}

func TestSelectSessionFallsBackToFirst(t *testing.T) {
	t.Parallel()
	sessions := []registration.Session{{ID: "s1", Label: "Morning"}, {ID: "s2", Label: "Afternoon"}}

	got := selectSession(sessions, []registration.Row{{Index: 0, SessionName: "Evening"}})
	require.Equal(t, "s1", got.ID)

	got = selectSession(sessions, []registration.Row{{Index: 0}})
	require.Equal(t, "s1", got.ID)
}
