package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// rabbitMQConsumer RabbitMQ 消费者.
//
// 每个消费组声明一个以 groupID 命名的队列，并按 topic 绑定到交换机，
// 不同消费组各自收到完整的消息流.
type rabbitMQConsumer struct {
	conn    *rabbitMQConnection
	groupID string
	cfg     RabbitMQConfig
	opts    *consumerOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newRabbitMQConsumer(conn *rabbitMQConnection, groupID string, cfg RabbitMQConfig, opts ...ConsumerOption) (*rabbitMQConsumer, error) {
	if groupID == "" {
		return nil, ErrEmptyGroupID
	}
	options := defaultConsumerOptions()
	for _, opt := range opts {
		opt(options)
	}
	if cfg.PrefetchCount <= 0 {
		cfg.PrefetchCount = 10
	}
	return &rabbitMQConsumer{conn: conn, groupID: groupID, cfg: cfg, opts: options}, nil
}

// Consume 声明队列并在后台消费，连接断开后自动重新订阅.
func (c *rabbitMQConsumer) Consume(ctx context.Context, topics []string, handler MessageHandler) error {
	if len(topics) == 0 {
		return ErrNoTopics
	}
	if handler == nil {
		return ErrNilHandler
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyConsuming
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	ch, deliveries, err := c.subscribe(topics)
	if err != nil {
		return err
	}

	d := &dispatcher{groupID: c.groupID, system: TypeRabbitMQ, opts: c.opts, handler: handler}
	reconnected := c.conn.reconnectNotify()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if ch != nil {
				ch.Close()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-reconnected:
				if ch != nil {
					ch.Close()
				}
				ch, deliveries, err = c.subscribe(topics)
				if err != nil && c.opts.logger != nil {
					c.opts.logger.With(logger.Err(err)).Warn("[Messaging] 重新订阅失败")
				}
			case delivery, ok := <-deliveries:
				if !ok {
					// 等待重连通知
					deliveries = nil
					select {
					case <-time.After(c.opts.reconnectInterval):
					case <-ctx.Done():
					}
					continue
				}
				c.handleDelivery(ctx, d, delivery)
			}
		}
	}()

	if c.opts.logger != nil {
		c.opts.logger.Debugf("[Messaging] RabbitMQ 开始消费: queue=%s topics=%v", c.groupID, topics)
	}
	return nil
}

func (c *rabbitMQConsumer) handleDelivery(ctx context.Context, d *dispatcher, delivery amqp.Delivery) {
	msg := &Message{
		Topic:     delivery.RoutingKey,
		Key:       []byte(delivery.MessageId),
		Value:     delivery.Body,
		Timestamp: delivery.Timestamp,
		Offset:    int64(delivery.DeliveryTag),
		Headers:   make(map[string]string, len(delivery.Headers)),
	}
	for k, v := range delivery.Headers {
		if s, ok := v.(string); ok {
			msg.Headers[k] = s
		}
	}

	_ = d.dispatch(ctx, msg)
	if ctx.Err() != nil {
		_ = delivery.Nack(false, true)
		return
	}
	// 重试耗尽的消息已进入死信队列，同样确认
	_ = delivery.Ack(false)
}

func (c *rabbitMQConsumer) subscribe(topics []string) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conn.channel()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCreateConsumer, err)
	}
	if err := ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("%w: 设置 QoS 失败: %v", ErrCreateConsumer, err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, c.cfg.ExchangeType, c.cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("%w: 声明交换机失败: %v", ErrCreateConsumer, err)
	}
	queue, err := ch.QueueDeclare(c.groupID, c.cfg.Durable, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("%w: 声明队列失败: %v", ErrCreateConsumer, err)
	}
	for _, topic := range topics {
		if err := ch.QueueBind(queue.Name, topic, c.cfg.Exchange, false, nil); err != nil {
			ch.Close()
			return nil, nil, fmt.Errorf("%w: 绑定队列失败: %v", ErrCreateConsumer, err)
		}
	}
	deliveries, err := ch.Consume(queue.Name, c.groupID, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("%w: 启动消费失败: %v", ErrCreateConsumer, err)
	}
	return ch, deliveries, nil
}

// Close 停止消费并等待处理中的消息完成.
func (c *rabbitMQConsumer) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}
