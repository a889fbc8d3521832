package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
)

func TestClientOptions(t *testing.T) {
	t.Run("WithLogger", func(t *testing.T) {
		c := &Client{}
		WithLogger(logger.NewNop())(c)
		if c.logger == nil {
			t.Error("expected logger to be set")
		}
	})

	t.Run("WithMetrics", func(t *testing.T) {
		c := &Client{cfg: &Config{Type: TypeMemory}}
		collector := metrics.MustNewMetrics(&metrics.Config{Namespace: "test_client"})
		WithMetrics(collector)(c)
		if c.metrics == nil {
			t.Fatal("expected metrics to be set")
		}
		if c.metrics.system != TypeMemory {
			t.Errorf("expected system label %q, got %q", TypeMemory, c.metrics.system)
		}
	})

	t.Run("WithMetrics before config", func(t *testing.T) {
		c := &Client{}
		collector := metrics.MustNewMetrics(&metrics.Config{Namespace: "test_client_nocfg"})
		WithMetrics(collector)(c)
		if c.metrics == nil || c.metrics.system != TypeKafka {
			t.Errorf("expected default system label %q", TypeKafka)
		}
	})

	t.Run("WithTracing", func(t *testing.T) {
		c := &Client{}
		WithTracing("orchestrator")(c)
		if c.tracer == nil {
			t.Error("expected tracer to be set")
		}
	})
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want error
	}{
		{"nil config", nil, ErrCreateClient},
		{"kafka without brokers", &Config{Type: TypeKafka}, ErrNoBrokers},
		{"rabbitmq without url", &Config{Type: TypeRabbitMQ}, ErrNoBrokers},
		{"unknown type", &Config{Type: "pulsar"}, ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestClient_Memory(t *testing.T) {
	cfg := &Config{
		Type: TypeMemory,
		Consumer: ConsumerConfig{
			MaxRetries:       1,
			RetryInterval:    time.Millisecond,
			DeadLetterSuffix: ".dlq",
		},
	}
	client, err := NewClient(cfg, WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatal(err)
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("memory client should be healthy: %v", err)
	}

	got := make(chan string, 1)
	consumer, err := client.Consumer("order-service-group")
	if err != nil {
		t.Fatal(err)
	}
	_ = consumer.Consume(context.Background(), []string{"orchestrator.saga"}, func(_ context.Context, msg *Message) error {
		got <- string(msg.Key)
		return nil
	})

	producer, err := client.Producer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := producer.SendMessage(context.Background(), &Message{Topic: "orchestrator.saga", Key: []byte("saga-9")}); err != nil {
		t.Fatal(err)
	}

	select {
	case key := <-got:
		if key != "saga-9" {
			t.Errorf("unexpected key %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	if err := client.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if _, err := client.Producer(); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestClient_SharedMemoryBroker(t *testing.T) {
	broker := NewMemoryBroker()
	a, _ := NewClient(&Config{Type: TypeMemory}, WithMemoryBroker(broker))
	b, _ := NewClient(&Config{Type: TypeMemory}, WithMemoryBroker(broker))
	if a.memory != b.memory {
		t.Error("clients should share the broker")
	}
}
