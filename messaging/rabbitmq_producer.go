package messaging

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultExchange     = "saga"
	defaultExchangeType = "direct"
)

// rabbitMQProducer RabbitMQ 生产者.
//
// 消息 Topic 作为 routing key 发布到交换机，MessageId 取消息 Key.
type rabbitMQProducer struct {
	conn     *rabbitMQConnection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
	mu       sync.Mutex
	closed   atomic.Bool

	cfg  RabbitMQConfig
	opts *producerOptions
}

func newRabbitMQProducer(conn *rabbitMQConnection, cfg RabbitMQConfig, opts ...ProducerOption) (*rabbitMQProducer, error) {
	options := &producerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	p := &rabbitMQProducer{conn: conn, cfg: cfg, opts: options}
	if err := p.setupChannel(); err != nil {
		return nil, err
	}

	reconnected := conn.reconnectNotify()
	go func() {
		for range reconnected {
			if p.closed.Load() {
				return
			}
			if err := p.setupChannel(); err != nil && p.opts.logger != nil {
				p.opts.logger.Warnf("[Messaging] 重建 channel 失败: %v", err)
			}
		}
	}()
	return p, nil
}

func (p *rabbitMQProducer) setupChannel() error {
	ch, err := p.conn.channel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateProducer, err)
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, p.cfg.ExchangeType, p.cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("%w: 声明交换机失败: %v", ErrCreateProducer, err)
	}

	var confirms chan amqp.Confirmation
	if p.cfg.Confirm {
		if err := ch.Confirm(false); err != nil {
			ch.Close()
			return fmt.Errorf("%w: 启用发布确认失败: %v", ErrCreateProducer, err)
		}
		confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}

	p.mu.Lock()
	if p.channel != nil {
		p.channel.Close()
	}
	p.channel = ch
	p.confirms = confirms
	p.mu.Unlock()
	return nil
}

// SendMessage 发布消息，启用确认时等待 broker ack.
func (p *rabbitMQProducer) SendMessage(ctx context.Context, msg *Message) (*Message, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	return p.opts.send(ctx, TypeRabbitMQ, msg, p.publish)
}

func (p *rabbitMQProducer) publish(ctx context.Context, msg *Message) (*Message, error) {
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg.Value,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    string(msg.Key),
	}
	if len(msg.Headers) > 0 {
		publishing.Headers = make(amqp.Table, len(msg.Headers))
		for k, v := range msg.Headers {
			publishing.Headers[k] = v
		}
	}

	// 串行发布，确认与消息一一对应
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return nil, ErrNoBrokersAvailable
	}
	if err := p.channel.PublishWithContext(ctx, p.cfg.Exchange, msg.Topic, false, false, publishing); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendMessage, err)
	}
	if p.confirms != nil {
		select {
		case confirm := <-p.confirms:
			if !confirm.Ack {
				return nil, fmt.Errorf("%w: 消息被 broker 拒绝", ErrSendMessage)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	sent := msg.clone()
	sent.Timestamp = publishing.Timestamp
	return sent, nil
}

// Close 关闭 channel，连接由 Client 统一关闭.
func (p *rabbitMQProducer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
