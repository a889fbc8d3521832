package messaging

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMessagingTracer_InjectExtract(t *testing.T) {
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tracer := newMessagingTracer("orchestrator")
	ctx, span := tracer.startProducerSpan(context.Background(), TypeKafka, "orchestrator.saga")
	defer span.End()

	original := map[string]string{HeaderEventType: "RESERVE_INVENTORY"}
	headers := tracer.injectHeaders(ctx, original)

	if _, ok := original["traceparent"]; ok {
		t.Error("inject must not mutate the input map")
	}
	if headers["traceparent"] == "" {
		t.Fatal("traceparent header missing")
	}
	if headers[HeaderEventType] != "RESERVE_INVENTORY" {
		t.Error("existing headers must be preserved")
	}

	extracted := tracer.extractContext(context.Background(), headers)
	sc := trace.SpanContextFromContext(extracted)
	if sc.TraceID() != span.SpanContext().TraceID() {
		t.Errorf("trace id mismatch: %s != %s", sc.TraceID(), span.SpanContext().TraceID())
	}
}

func TestMessagingTracer_ExtractEmpty(t *testing.T) {
	tracer := newMessagingTracer("orchestrator")
	ctx := context.Background()
	if got := tracer.extractContext(ctx, nil); got != ctx {
		t.Error("empty headers should return the same context")
	}
}

func TestProducerOptions_SendInjectsTrace(t *testing.T) {
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})

	opts := &producerOptions{tracer: newMessagingTracer("orchestrator")}
	msg := &Message{Topic: "orchestrator.saga", Headers: map[string]string{HeaderEventType: "PROCESS_PAYMENT"}}

	var delivered *Message
	_, err := opts.send(context.Background(), TypeMemory, msg, func(_ context.Context, m *Message) (*Message, error) {
		delivered = m
		return m, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered.Headers["traceparent"] == "" {
		t.Error("delivered message should carry traceparent")
	}
	if _, ok := msg.Headers["traceparent"]; ok {
		t.Error("caller's message must not be mutated")
	}
}
