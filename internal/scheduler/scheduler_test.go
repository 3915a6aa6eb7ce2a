package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/pending"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
	"github.com/hvnguyen/popmart-registrar/internal/registry"
	"github.com/hvnguyen/popmart-registrar/internal/worker"
)

// stubGateway records which days were processed. Submissions always succeed.
type stubGateway struct {
	mu        sync.Mutex
	dayIDs    map[string]string
	processed map[string]int
}

func newStubGateway(days ...string) *stubGateway {
	ids := make(map[string]string, len(days))
	for i, d := range days {
		ids[d] = string(rune('1' + i))
	}
	return &stubGateway{dayIDs: ids, processed: make(map[string]int)}
}

func (g *stubGateway) FetchFormPage(context.Context) (string, error) { return "<html></html>", nil }

func (g *stubGateway) SalesDayLabels(string) []string {
	labels := make([]string, 0, len(g.dayIDs))
	for label := range g.dayIDs {
		labels = append(labels, label)
	}
	return labels
}

func (g *stubGateway) MapLabelToID(_, label string) (string, bool) {
	g.mu.Lock()
	g.processed[label]++
	g.mu.Unlock()
	id, ok := g.dayIDs[label]
	return id, ok
}

func (g *stubGateway) LoadSessions(context.Context, string) ([]registration.Session, error) {
	return []registration.Session{{ID: "s1", Label: "Morning"}}, nil
}

func (g *stubGateway) FetchCaptcha(context.Context) (string, error) { return "img.png", nil }

func (g *stubGateway) DownloadImage(context.Context, string) ([]byte, error) {
	return []byte("png"), nil
}

func (g *stubGateway) SubmitRegistration(context.Context, map[string]string) (string, error) {
	return "!!!True|~~|ok", nil
}

func (g *stubGateway) timesProcessed(day string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.processed[day]
}

type stubSolver struct{}

func (stubSolver) Solve(context.Context, []byte) (string, error) { return "abcd", nil }

func assignmentFor(days []string, rows []registration.Row) registration.Assignment {
	return registration.RoundRobin(days, rows)
}

func newScheduler(t *testing.T, gw *stubGateway, reg *registry.Registry, maxWorkers int) *Scheduler {
	t.Helper()
	w := worker.New(gw, stubSolver{}, pending.NewStore(), reg, nil, nil, nil,
		worker.Config{MaxAttempts: 4}, zap.NewNop())
	return New(reg, w, Config{MaxWorkers: maxWorkers}, zap.NewNop())
}

func TestDispatchRunsEveryClaimedDay(t *testing.T) {
	t.Parallel()
	days := []string{"24/12/2024", "25/12/2024", "26/12/2024"}
	gw := newStubGateway(days...)
	reg := registry.New(false)
	s := newScheduler(t, gw, reg, 2)

	rows := []registration.Row{{Index: 0}, {Index: 1}, {Index: 2}}
	claimed := s.Dispatch(context.Background(), "batch", 7, assignmentFor(days, rows))
	require.Equal(t, days, claimed)
	s.Wait()

	for _, day := range days {
		require.Equal(t, 1, gw.timesProcessed(day))
		require.Equal(t, registration.DayCompleted, reg.State(day))
	}
}

func TestDispatchSkipsAlreadyClaimedDays(t *testing.T) {
	t.Parallel()
	days := []string{"24/12/2024", "25/12/2024"}
	gw := newStubGateway(days...)
	reg := registry.New(false)
	s := newScheduler(t, gw, reg, 4)

	rows := []registration.Row{{Index: 0}, {Index: 1}}
	first := s.Dispatch(context.Background(), "b1", 7, assignmentFor(days, rows))
	require.Len(t, first, 2)
	s.Wait()

	// Every day completed; a second batch over the same days is a no-op.
	second := s.Dispatch(context.Background(), "b2", 7, assignmentFor(days, rows))
	require.Empty(t, second)
	s.Wait()
	for _, day := range days {
		require.Equal(t, 1, gw.timesProcessed(day), "day %s processed twice", day)
	}
}

func TestDispatchCanceledContextReleasesClaims(t *testing.T) {
	t.Parallel()
	gw := newStubGateway("24/12/2024")
	reg := registry.New(true)
	s := newScheduler(t, gw, reg, 1)

	ctx, cancel := context.WithCancel(context.Background())
	// Hold the only semaphore slot so the day task blocks in Acquire.
	require.NoError(t, s.sem.Acquire(ctx, 1))

	claimed := s.Dispatch(ctx, "batch", 7, assignmentFor([]string{"24/12/2024"}, []registration.Row{{Index: 0}}))
	require.Equal(t, []string{"24/12/2024"}, claimed)

	cancel()
	s.Wait()

	// The task never started; under retry-on-failure the claim is returned.
	require.Equal(t, registration.DayPending, reg.State("24/12/2024"))
	require.Zero(t, gw.timesProcessed("24/12/2024"))
}
