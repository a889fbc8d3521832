// Package messaging 提供消息通道抽象.
//
// 命令与回复均以 JSON 编码后经由消息通道投递，语义为至少一次投递、
// 跨分区不保证顺序. 支持 Kafka（默认）、RabbitMQ 以及进程内内存通道.
//
// 示例:
//
//	client, _ := messaging.NewClient(cfg, messaging.WithLogger(log))
//	defer client.Close()
//
//	producer, _ := client.Producer()
//	producer.SendMessage(ctx, &messaging.Message{Topic: "orchestrator.saga", Key: []byte(sagaID), Value: body})
//
//	consumer, _ := client.Consumer("orchestrator-service-group")
//	consumer.Consume(ctx, []string{"orchestrator.reply"}, handler)
package messaging

import "context"

// 消息队列类型.
const (
	TypeKafka    = "kafka"
	TypeRabbitMQ = "rabbitmq"
	TypeMemory   = "memory"
)

// MessageHandler 消息处理函数.
//
// ctx 携带从消息头提取的链路追踪信息. 返回错误时消息会按消费者的重试策略重新处理.
type MessageHandler func(ctx context.Context, msg *Message) error

// Producer 生产者接口.
type Producer interface {
	// SendMessage 发送单条消息，返回包含分区和偏移量的消息.
	SendMessage(ctx context.Context, msg *Message) (*Message, error)
	// Close 关闭生产者.
	Close() error
}

// Consumer 消费者接口.
type Consumer interface {
	// Consume 在后台开始消费消息，调用后立即返回.
	Consume(ctx context.Context, topics []string, handler MessageHandler) error
	// Close 停止消费并等待处理中的消息完成.
	Close() error
}
