package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

func TestDispatcher_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	d := &dispatcher{
		groupID: "g",
		system:  TypeMemory,
		opts: &consumerOptions{
			logger:        logger.NewNop(),
			maxRetries:    3,
			retryInterval: time.Millisecond,
		},
		handler: func(context.Context, *Message) error {
			if calls.Add(1) < 3 {
				return errors.New("transient")
			}
			return nil
		},
	}

	if err := d.dispatch(context.Background(), &Message{Topic: "orchestrator.reply"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDispatcher_DeadLetter(t *testing.T) {
	broker := NewMemoryBroker()
	dlqConsumer, _ := broker.Consumer("dlq-watcher")
	defer dlqConsumer.Close()

	received := make(chan *Message, 1)
	_ = dlqConsumer.Consume(context.Background(), []string{"orchestrator.reply.dlq"}, func(_ context.Context, msg *Message) error {
		received <- msg
		return nil
	})

	cause := errors.New("boom")
	d := &dispatcher{
		groupID: "orchestrator-service-group",
		system:  TypeMemory,
		opts: &consumerOptions{
			maxRetries:       1,
			retryInterval:    time.Millisecond,
			deadLetterSuffix: ".dlq",
			dlqProducer:      broker.Producer(),
		},
		handler: func(context.Context, *Message) error { return cause },
	}

	err := d.dispatch(context.Background(), &Message{
		Topic:   "orchestrator.reply",
		Key:     []byte("saga-1"),
		Value:   []byte("{}"),
		Headers: map[string]string{HeaderEventType: "PROCESS_PAYMENT"},
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause, got %v", err)
	}

	select {
	case msg := <-received:
		if msg.Header("x-original-topic") != "orchestrator.reply" {
			t.Errorf("unexpected original topic %q", msg.Header("x-original-topic"))
		}
		if msg.Header("x-error-message") != "boom" {
			t.Errorf("unexpected error header %q", msg.Header("x-error-message"))
		}
		if msg.Header(HeaderEventType) != "PROCESS_PAYMENT" {
			t.Error("original headers must be carried over")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dead letter message not received")
	}
}

func TestDispatcher_PanicBecomesError(t *testing.T) {
	d := &dispatcher{
		opts:    &consumerOptions{},
		handler: func(context.Context, *Message) error { panic("bad reply") },
	}

	err := d.dispatch(context.Background(), &Message{Topic: "t"})
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Value != "bad reply" {
		t.Errorf("unexpected panic value %v", pe.Value)
	}
}

func TestDispatcher_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &dispatcher{
		opts: &consumerOptions{maxRetries: 5, retryInterval: time.Hour},
		handler: func(context.Context, *Message) error {
			cancel()
			return errors.New("fail")
		},
	}

	if err := d.dispatch(ctx, &Message{Topic: "t"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
