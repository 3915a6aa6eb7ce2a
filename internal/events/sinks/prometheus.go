package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hvnguyen/popmart-registrar/internal/events"
)

// PrometheusSink exports registration progress metrics. It owns all of the
// collectors for day runs and per-row outcomes.
type PrometheusSink struct {
	daysStarted   prometheus.Counter
	daysCompleted *prometheus.CounterVec
	daysRunning   prometheus.Gauge
	rowOutcomes   *prometheus.CounterVec
	rowAttempts   prometheus.Counter
	manualPending prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		daysStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registrar_days_started_total",
			Help: "Total day workers started.",
		}),
		daysCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_days_completed_total",
			Help: "Total day runs completed partitioned by result.",
		}, []string{"result"}),
		daysRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_days_running",
			Help: "Current number of running day workers.",
		}),
		rowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_rows_total",
			Help: "Row terminations partitioned by outcome.",
		}, []string{"outcome"}),
		rowAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registrar_captcha_attempts_total",
			Help: "Captcha attempts consumed across all rows.",
		}),
		manualPending: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registrar_manual_fallbacks_total",
			Help: "Rows handed to the manual captcha flow.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.daysStarted,
		s.daysCompleted,
		s.daysRunning,
		s.rowOutcomes,
		s.rowAttempts,
		s.manualPending,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register events collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors for one event.
func (s *PrometheusSink) Consume(_ context.Context, evt events.Event) error {
	switch evt.Stage {
	case events.StageDayStart:
		s.daysStarted.Inc()
		s.daysRunning.Inc()
	case events.StageDayDone:
		s.daysCompleted.WithLabelValues("done").Inc()
		s.daysRunning.Dec()
	case events.StageDayError:
		s.daysCompleted.WithLabelValues("error").Inc()
		s.daysRunning.Dec()
	case events.StageRowSuccess:
		s.rowOutcomes.WithLabelValues("success").Inc()
		s.rowAttempts.Inc()
	case events.StageRowRetry:
		s.rowAttempts.Inc()
	case events.StageRowFailed:
		s.rowOutcomes.WithLabelValues("failed").Inc()
	case events.StageRowManual:
		s.rowOutcomes.WithLabelValues("manual").Inc()
		s.manualPending.Inc()
	case events.StageSessionFull:
		s.rowOutcomes.WithLabelValues("session_full").Inc()
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
