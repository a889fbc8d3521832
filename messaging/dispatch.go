package messaging

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// dispatcher 封装各消费者实现共用的处理流程: 链路提取、重试、死信与指标.
type dispatcher struct {
	groupID string
	system  string
	opts    *consumerOptions
	handler MessageHandler
}

// dispatch 处理单条消息，返回最终错误. 重试耗尽后消息会转入死信队列（如已配置）.
func (d *dispatcher) dispatch(ctx context.Context, msg *Message) error {
	start := time.Now()

	var span trace.Span
	if d.opts.tracer != nil {
		ctx = d.opts.tracer.extractContext(ctx, msg.Headers)
		ctx, span = d.opts.tracer.startConsumerSpan(ctx, d.system, msg.Topic, msg.Partition, msg.Offset)
		defer span.End()
	}

	var lastErr error
	maxAttempts := d.opts.maxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = d.safeHandle(ctx, msg)
		if lastErr == nil {
			break
		}
		if attempt == maxAttempts {
			break
		}
		if d.opts.metrics != nil {
			d.opts.metrics.RecordRetry(msg.Topic)
		}
		backoff := d.opts.retryInterval * time.Duration(1<<(attempt-1))
		if d.opts.logger != nil {
			d.opts.logger.With(
				logger.Duration("backoff", backoff),
				logger.Int("attempt", attempt),
				logger.Topic(msg.Topic),
				logger.Int64("offset", msg.Offset),
				logger.Err(lastErr),
			).Warn("[Messaging] 消息处理失败，即将重试")
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if lastErr == nil {
		if d.opts.metrics != nil {
			d.opts.metrics.RecordConsume(msg.Topic, d.groupID, time.Since(start))
		}
		return nil
	}

	if d.opts.tracer != nil {
		d.opts.tracer.setError(span, lastErr)
	}
	if d.opts.metrics != nil {
		d.opts.metrics.RecordConsumeError(msg.Topic, d.groupID)
	}
	if d.opts.logger != nil {
		d.opts.logger.With(
			logger.Topic(msg.Topic),
			logger.Int64("offset", msg.Offset),
			logger.Err(lastErr),
		).Error("[Messaging] 消息处理失败，重试耗尽")
	}
	if d.opts.dlqProducer != nil && d.opts.deadLetterSuffix != "" {
		d.sendToDeadLetterQueue(ctx, msg, lastErr)
	}
	return lastErr
}

// safeHandle 调用处理函数并将 panic 转换为错误.
func (d *dispatcher) safeHandle(ctx context.Context, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return d.handler(ctx, msg)
}

func (d *dispatcher) sendToDeadLetterQueue(ctx context.Context, msg *Message, cause error) {
	dlq := &Message{
		Topic: msg.Topic + d.opts.deadLetterSuffix,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: map[string]string{
			"x-original-topic":     msg.Topic,
			"x-original-partition": strconv.FormatInt(int64(msg.Partition), 10),
			"x-original-offset":    strconv.FormatInt(msg.Offset, 10),
			"x-error-message":      cause.Error(),
			"x-consumer-group":     d.groupID,
		},
	}
	for k, v := range msg.Headers {
		if _, exists := dlq.Headers[k]; !exists {
			dlq.Headers[k] = v
		}
	}

	if _, err := d.opts.dlqProducer.SendMessage(ctx, dlq); err != nil {
		if d.opts.logger != nil {
			d.opts.logger.With(logger.Topic(msg.Topic), logger.Err(err)).Error("[Messaging] 发送死信队列失败")
		}
		return
	}
	if d.opts.metrics != nil {
		d.opts.metrics.RecordDLQ(msg.Topic)
	}
	if d.opts.logger != nil {
		d.opts.logger.With(
			logger.String("originalTopic", msg.Topic),
			logger.String("dlqTopic", dlq.Topic),
		).Warn("[Messaging] 消息已发送到死信队列")
	}
}

// PanicError 消息处理函数 panic 时返回的错误.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "messaging: 消息处理 panic"
}
