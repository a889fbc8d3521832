package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// KafkaConsumer Kafka 消费者组.
//
// 关闭自动提交，消息处理完成（或转入死信队列）后才标记偏移量.
// 同一分区内的消息按顺序串行处理.
type KafkaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	groupID       string
	opts          *consumerOptions
	dispatcher    *dispatcher
	topics        []string
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.Mutex
}

// NewKafkaConsumer 创建 Kafka 消费者.
func NewKafkaConsumer(brokers []string, groupID, clientID string, opts ...ConsumerOption) (*KafkaConsumer, error) {
	if groupID == "" {
		return nil, ErrEmptyGroupID
	}
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}

	options := defaultConsumerOptions()
	for _, opt := range opts {
		opt(options)
	}

	config := sarama.NewConfig()
	config.Version = sarama.V3_8_0_0
	if clientID != "" {
		config.ClientID = clientID
	}
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Offsets.AutoCommit.Enable = false

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, errors.Join(ErrCreateConsumer, err)
	}

	if options.logger != nil {
		options.logger.With(
			logger.Any("brokers", brokers),
			logger.String("groupID", groupID),
		).Debug("[Messaging] Kafka消费者启动")
	}

	return &KafkaConsumer{
		consumerGroup: group,
		groupID:       groupID,
		opts:          options,
	}, nil
}

// Consume 在后台启动消费循环，调用后立即返回.
func (c *KafkaConsumer) Consume(ctx context.Context, topics []string, handler MessageHandler) error {
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
	c.topics = topics
	c.dispatcher = &dispatcher{groupID: c.groupID, system: TypeKafka, opts: c.opts, handler: handler}
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		defer c.recoverPanic("消费循环")
		for {
			if err := c.consumerGroup.Consume(ctx, c.topics, c); err != nil {
				if ctx.Err() != nil {
					return
				}
				if c.opts.logger != nil {
					c.opts.logger.With(logger.Err(err)).Error("[Messaging] 消费失败")
				}
				select {
				case <-time.After(c.opts.reconnectInterval):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		defer c.recoverPanic("错误监听")
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				if c.opts.logger != nil {
					c.opts.logger.With(logger.Err(err)).Warn("[Messaging] 消费者错误")
				}
			}
		}
	}()

	return nil
}

// Close 停止消费并等待所有 goroutine 退出.
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// Setup 实现 sarama.ConsumerGroupHandler.
func (c *KafkaConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup 实现 sarama.ConsumerGroupHandler，会话结束前提交已标记的偏移量.
func (c *KafkaConsumer) Cleanup(session sarama.ConsumerGroupSession) error {
	session.Commit()
	return nil
}

// ConsumeClaim 实现 sarama.ConsumerGroupHandler，串行处理分区消息.
func (c *KafkaConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			_ = c.dispatcher.dispatch(session.Context(), fromSarama(msg))
			if session.Context().Err() != nil {
				// 会话结束时未完成的消息不标记，重平衡后会被重新投递
				return nil
			}
			session.MarkMessage(msg, "")
			session.Commit()
		case <-session.Context().Done():
			return nil
		}
	}
}

func fromSarama(msg *sarama.ConsumerMessage) *Message {
	m := &Message{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   make(map[string]string, len(msg.Headers)),
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Timestamp,
	}
	for _, h := range msg.Headers {
		if h != nil {
			m.Headers[string(h.Key)] = string(h.Value)
		}
	}
	return m
}

func (c *KafkaConsumer) recoverPanic(name string) {
	if r := recover(); r != nil && c.opts.logger != nil {
		c.opts.logger.With(
			logger.String("goroutine", name),
			logger.Any("panic", r),
		).Error("[Messaging] goroutine panic")
	}
}
