package messaging

import (
	"time"

	"github.com/Tsukikage7/saga-orchestrator/metrics"
)

// messagingMetrics 消息通道指标，所有指标带 system 标签区分 kafka、rabbitmq 与 memory.
type messagingMetrics struct {
	collector *metrics.PrometheusCollector
	system    string
}

func newMessagingMetrics(collector *metrics.PrometheusCollector, system string) *messagingMetrics {
	return &messagingMetrics{collector: collector, system: system}
}

func (m *messagingMetrics) labels(topic string, extra ...string) map[string]string {
	l := map[string]string{"system": m.system, "topic": topic}
	for i := 0; i+1 < len(extra); i += 2 {
		l[extra[i]] = extra[i+1]
	}
	return l
}

func (m *messagingMetrics) RecordSend(topic string, latency time.Duration) {
	l := m.labels(topic)
	m.collector.Counter("messaging_messages_sent_total", l)
	m.collector.Histogram("messaging_send_duration_seconds", latency.Seconds(), l)
}

func (m *messagingMetrics) RecordSendError(topic string) {
	m.collector.Counter("messaging_send_errors_total", m.labels(topic))
}

func (m *messagingMetrics) RecordConsume(topic, groupID string, latency time.Duration) {
	l := m.labels(topic, "group", groupID)
	m.collector.Counter("messaging_messages_consumed_total", l)
	m.collector.Histogram("messaging_consume_duration_seconds", latency.Seconds(), l)
}

func (m *messagingMetrics) RecordConsumeError(topic, groupID string) {
	m.collector.Counter("messaging_consume_errors_total", m.labels(topic, "group", groupID))
}

// RecordRetry 消费失败后的重试次数.
func (m *messagingMetrics) RecordRetry(topic string) {
	m.collector.Counter("messaging_retries_total", m.labels(topic))
}

// RecordDLQ 重试耗尽转入死信主题的消息数.
func (m *messagingMetrics) RecordDLQ(topic string) {
	m.collector.Counter("messaging_dlq_total", m.labels(topic))
}
