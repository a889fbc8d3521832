package messaging

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"

	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
)

// Client 消息通道客户端.
//
// 按 Config.Type 创建 Kafka、RabbitMQ 或内存实现的生产者与消费者，
// 统一注入日志、指标与链路追踪，并负责它们的关闭.
//
//	client, err := messaging.NewClient(cfg,
//	    messaging.WithLogger(log),
//	    messaging.WithMetrics(collector),
//	    messaging.WithTracing("orchestrator"),
//	)
//	defer client.Close()
type Client struct {
	cfg     *Config
	logger  logger.Logger
	metrics *messagingMetrics
	tracer  *messagingTracer

	saramaClient sarama.Client
	rabbit       *rabbitMQConnection
	memory       *MemoryBroker

	producers []Producer
	consumers []Consumer
	dlq       Producer
	mu        sync.Mutex
	closed    bool
}

// ClientOption 客户端配置选项.
type ClientOption func(*Client)

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = log
	}
}

// WithMetrics 启用指标监控.
func WithMetrics(collector *metrics.PrometheusCollector) ClientOption {
	return func(c *Client) {
		if collector != nil {
			c.metrics = newMessagingMetrics(collector, c.typeName())
		}
	}
}

// WithTracing 启用链路追踪，使用全局 TracerProvider.
func WithTracing(serviceName string) ClientOption {
	return func(c *Client) {
		c.tracer = newMessagingTracer(serviceName)
	}
}

// WithMemoryBroker 指定共享的内存通道，多个客户端可在同一进程内互通.
func WithMemoryBroker(b *MemoryBroker) ClientOption {
	return func(c *Client) {
		c.memory = b
	}
}

// NewClient 创建消息通道客户端.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, ErrCreateClient
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	switch cfg.Type {
	case "", TypeKafka:
		config := sarama.NewConfig()
		config.Version = sarama.V3_8_0_0
		if cfg.ClientID != "" {
			config.ClientID = cfg.ClientID
		}
		client, err := sarama.NewClient(cfg.Brokers, config)
		if err != nil {
			return nil, errors.Join(ErrCreateClient, err)
		}
		c.saramaClient = client
	case TypeRabbitMQ:
		conn, err := newRabbitMQConnection(cfg.URL, c.logger, cfg.Consumer.ReconnectInterval)
		if err != nil {
			return nil, err
		}
		c.rabbit = conn
	case TypeMemory:
		if c.memory == nil {
			c.memory = NewMemoryBroker()
		}
	}

	if c.logger != nil {
		c.logger.Debugf("[Messaging] 客户端已创建: type=%s", c.typeName())
	}
	return c, nil
}

func (c *Client) typeName() string {
	if c.cfg == nil || c.cfg.Type == "" {
		return TypeKafka
	}
	return c.cfg.Type
}

func (c *Client) rabbitConfig() RabbitMQConfig {
	rc := RabbitMQConfig{Exchange: defaultExchange, ExchangeType: defaultExchangeType, Durable: true, Confirm: true}
	if c.cfg.RabbitMQ != nil {
		rc = *c.cfg.RabbitMQ
		if rc.Exchange == "" {
			rc.Exchange = defaultExchange
		}
		if rc.ExchangeType == "" {
			rc.ExchangeType = defaultExchangeType
		}
	}
	return rc
}

// Producer 创建生产者，生命周期由 Client 管理.
func (c *Client) Producer() (Producer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	p, err := c.newProducer()
	if err != nil {
		return nil, err
	}
	c.producers = append(c.producers, p)
	return p, nil
}

func (c *Client) newProducer() (Producer, error) {
	opts := []ProducerOption{func(o *producerOptions) {
		o.logger = c.logger
		o.metrics = c.metrics
		o.tracer = c.tracer
	}}

	switch c.typeName() {
	case TypeRabbitMQ:
		return newRabbitMQProducer(c.rabbit, c.rabbitConfig(), opts...)
	case TypeMemory:
		return c.memory.Producer(opts...), nil
	default:
		return NewKafkaProducer(c.cfg.Brokers, c.cfg.ClientID, opts...)
	}
}

// Consumer 创建消费者，自动应用配置中的重试与死信策略.
func (c *Client) Consumer(groupID string) (Consumer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}

	opts := []ConsumerOption{
		WithRetry(c.cfg.Consumer.MaxRetries, c.cfg.Consumer.RetryInterval),
		WithReconnectInterval(c.cfg.Consumer.ReconnectInterval),
		func(o *consumerOptions) {
			o.logger = c.logger
			o.metrics = c.metrics
			o.tracer = c.tracer
		},
	}
	if c.cfg.Consumer.DeadLetterSuffix != "" {
		if c.dlq == nil {
			dlq, err := c.newProducer()
			if err != nil {
				return nil, err
			}
			c.dlq = dlq
			c.producers = append(c.producers, dlq)
		}
		opts = append(opts, WithDeadLetterQueue(c.cfg.Consumer.DeadLetterSuffix, c.dlq))
	}

	var (
		consumer Consumer
		err      error
	)
	switch c.typeName() {
	case TypeRabbitMQ:
		consumer, err = newRabbitMQConsumer(c.rabbit, groupID, c.rabbitConfig(), opts...)
	case TypeMemory:
		consumer, err = c.memory.Consumer(groupID, opts...)
	default:
		consumer, err = NewKafkaConsumer(c.cfg.Brokers, groupID, c.cfg.ClientID, opts...)
	}
	if err != nil {
		return nil, err
	}
	c.consumers = append(c.consumers, consumer)
	return consumer, nil
}

// HealthCheck 检查与消息服务器的连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}

	switch {
	case c.saramaClient != nil:
		brokers := c.saramaClient.Brokers()
		if len(brokers) == 0 {
			return ErrNoBrokersAvailable
		}
		for _, broker := range brokers {
			if connected, _ := broker.Connected(); connected {
				return nil
			}
		}
		if err := c.saramaClient.RefreshMetadata(); err != nil {
			return errors.Join(ErrHealthCheck, err)
		}
		return nil
	case c.rabbit != nil:
		if err := c.rabbit.healthy(); err != nil {
			return errors.Join(ErrHealthCheck, err)
		}
		return nil
	default:
		return ctx.Err()
	}
}

// Close 关闭客户端.
func (c *Client) Close() error {
	return c.Shutdown(context.Background())
}

// Shutdown 先关闭消费者再关闭生产者，受 ctx 超时限制.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	producers, consumers := c.producers, c.consumers
	c.mu.Unlock()

	var (
		errs []error
		emu  sync.Mutex
	)
	collect := func(err error) {
		if err != nil {
			emu.Lock()
			errs = append(errs, err)
			emu.Unlock()
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, cons := range consumers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				collect(cons.Close())
			}()
		}
		wg.Wait()
		for _, prod := range producers {
			collect(prod.Close())
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if c.logger != nil {
			c.logger.Warn("[Messaging] 优雅关闭超时，强制关闭")
		}
	}

	if c.saramaClient != nil {
		collect(c.saramaClient.Close())
	}
	if c.rabbit != nil {
		collect(c.rabbit.close())
	}
	if c.memory != nil {
		collect(c.memory.Close())
	}

	if c.logger != nil {
		c.logger.Debug("[Messaging] 客户端已关闭")
	}
	emu.Lock()
	defer emu.Unlock()
	return errors.Join(errs...)
}
