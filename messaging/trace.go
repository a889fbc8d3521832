package messaging

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// messagingTracer 消息通道追踪器.
//
// 使用全局 TracerProvider，需先通过 tracing.NewTracer 初始化.
type messagingTracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func newMessagingTracer(serviceName string) *messagingTracer {
	return &messagingTracer{
		tracer:     otel.Tracer(serviceName),
		propagator: otel.GetTextMapPropagator(),
	}
}

func (t *messagingTracer) startProducerSpan(ctx context.Context, system, topic string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, system+".produce",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", system),
			attribute.String("messaging.destination.name", topic),
			attribute.String("messaging.operation", "publish"),
		),
	)
}

func (t *messagingTracer) startConsumerSpan(ctx context.Context, system, topic string, partition int32, offset int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, system+".consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", system),
			attribute.String("messaging.destination.name", topic),
			attribute.String("messaging.operation", "receive"),
			attribute.Int64("messaging.partition", int64(partition)),
			attribute.Int64("messaging.offset", offset),
		),
	)
}

// injectHeaders 将追踪上下文注入到消息 Headers，返回新的 map.
func (t *messagingTracer) injectHeaders(ctx context.Context, headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		out[k] = v
	}
	t.propagator.Inject(ctx, propagation.MapCarrier(out))
	return out
}

// extractContext 从消息 Headers 提取追踪上下文.
func (t *messagingTracer) extractContext(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return t.propagator.Extract(ctx, propagation.MapCarrier(headers))
}

func (t *messagingTracer) setError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
