package messaging

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// ProducerOption 生产者配置选项.
type ProducerOption func(*producerOptions)

type producerOptions struct {
	logger  logger.Logger
	metrics *messagingMetrics
	tracer  *messagingTracer
}

// WithProducerLogger 设置生产者日志记录器.
func WithProducerLogger(log logger.Logger) ProducerOption {
	return func(o *producerOptions) {
		o.logger = log
	}
}

// deliverFunc 把消息交给具体通道，返回带分区、偏移或时间戳的副本.
type deliverFunc func(ctx context.Context, msg *Message) (*Message, error)

// send 是各生产者共用的发送流程: 校验消息、开启生产者 span、注入追踪头，
// 再交给 deliver 并记录发送指标. msg 不会被修改.
func (o *producerOptions) send(ctx context.Context, system string, msg *Message, deliver deliverFunc) (sent *Message, err error) {
	switch {
	case msg == nil:
		return nil, ErrNilMessage
	case msg.Topic == "":
		return nil, ErrEmptyTopic
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.startProducerSpan(ctx, system, msg.Topic)
		defer func() {
			o.tracer.setError(span, err)
			span.End()
		}()
		msg = msg.clone()
		msg.Headers = o.tracer.injectHeaders(ctx, msg.Headers)
	}

	sent, err = deliver(ctx, msg)
	if o.metrics != nil {
		if err != nil {
			o.metrics.RecordSendError(msg.Topic)
		} else {
			o.metrics.RecordSend(msg.Topic, time.Since(start))
		}
	}
	return sent, err
}

// ConsumerOption 消费者配置选项.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	logger            logger.Logger
	maxRetries        int
	retryInterval     time.Duration
	reconnectInterval time.Duration
	deadLetterSuffix  string
	dlqProducer       Producer
	metrics           *messagingMetrics
	tracer            *messagingTracer
}

func defaultConsumerOptions() *consumerOptions {
	return &consumerOptions{
		retryInterval:     100 * time.Millisecond,
		reconnectInterval: time.Second,
	}
}

// WithConsumerLogger 设置消费者日志记录器.
func WithConsumerLogger(log logger.Logger) ConsumerOption {
	return func(o *consumerOptions) {
		o.logger = log
	}
}

// WithRetry 设置重试策略.
//
// 处理失败时按指数退避重试，间隔 = retryInterval * 2^(重试次数-1).
//
//	WithRetry(3, time.Second) // 重试3次，间隔 1s, 2s, 4s
func WithRetry(maxRetries int, retryInterval time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		o.maxRetries = maxRetries
		if retryInterval > 0 {
			o.retryInterval = retryInterval
		}
	}
}

// WithDeadLetterQueue 设置死信队列，重试耗尽的消息发送到 <topic><suffix>.
func WithDeadLetterQueue(suffix string, producer Producer) ConsumerOption {
	return func(o *consumerOptions) {
		o.deadLetterSuffix = suffix
		o.dlqProducer = producer
	}
}

// WithReconnectInterval 设置消费循环出错后的重连间隔，默认 1 秒.
func WithReconnectInterval(interval time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		if interval > 0 {
			o.reconnectInterval = interval
		}
	}
}
