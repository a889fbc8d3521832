package saga

import (
	"time"

	"github.com/Tsukikage7/saga-orchestrator/metrics"
)

// sagaMetrics Saga 指标，nil 接收者上的调用为空操作.
type sagaMetrics struct {
	collector *metrics.PrometheusCollector
}

func newSagaMetrics(collector *metrics.PrometheusCollector) *sagaMetrics {
	return &sagaMetrics{collector: collector}
}

func (m *sagaMetrics) transition(status Status) {
	if m == nil {
		return
	}
	m.collector.Counter("saga_transitions_total", map[string]string{"status": string(status)})
}

func (m *sagaMetrics) reply(command CommandName, status ReplyStatus) {
	if m == nil {
		return
	}
	m.collector.Counter("saga_replies_total", map[string]string{
		"command": string(command),
		"status":  string(status),
	})
}

func (m *sagaMetrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.collector.Counter("saga_replies_dropped_total", map[string]string{"reason": reason})
}

func (m *sagaMetrics) stepDuration(step StepName, d time.Duration) {
	if m == nil {
		return
	}
	m.collector.Histogram("saga_step_duration_seconds", d.Seconds(), map[string]string{"step": string(step)})
}

func (m *sagaMetrics) retry(step StepName) {
	if m == nil {
		return
	}
	m.collector.Counter("saga_retries_total", map[string]string{"step": string(step)})
}
