package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

// KafkaProducer 同步生产者，每条消息等待全部 ISR 确认.
//
// 消息 Key 决定分区，同一 sagaId 的命令与回复落在同一分区，保持顺序.
type KafkaProducer struct {
	producer sarama.SyncProducer
	opts     *producerOptions
	closed   atomic.Bool
}

// newSaramaProducerConfig 幂等发送要求 WaitForAll 且单连接只有一个在途请求.
func newSaramaProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_8_0_0
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// NewKafkaProducer 连接 brokers 并创建生产者.
func NewKafkaProducer(brokers []string, clientID string, opts ...ProducerOption) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	sp, err := sarama.NewSyncProducer(brokers, newSaramaProducerConfig(clientID))
	if err != nil {
		return nil, errors.Join(ErrCreateProducer, err)
	}

	p := newKafkaProducer(sp, opts...)
	if p.opts.logger != nil {
		p.opts.logger.Debugf("[Messaging] Kafka 生产者已就绪: brokers=%v", brokers)
	}
	return p, nil
}

// newKafkaProducer 包装已有的 SyncProducer，测试中传入 mocks.SyncProducer.
func newKafkaProducer(sp sarama.SyncProducer, opts ...ProducerOption) *KafkaProducer {
	o := &producerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return &KafkaProducer{producer: sp, opts: o}
}

// SendMessage 发送并等待确认，返回的副本带有分区与偏移量.
func (p *KafkaProducer) SendMessage(ctx context.Context, msg *Message) (*Message, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	return p.opts.send(ctx, TypeKafka, msg, p.deliver)
}

func (p *KafkaProducer) deliver(_ context.Context, msg *Message) (*Message, error) {
	pm := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Value),
		Timestamp: time.Now(),
	}
	if len(msg.Key) > 0 {
		pm.Key = sarama.ByteEncoder(msg.Key)
	}
	for k, v := range msg.Headers {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := p.producer.SendMessage(pm)
	if err != nil {
		return nil, errors.Join(ErrSendMessage, err)
	}
	sent := msg.clone()
	sent.Partition, sent.Offset, sent.Timestamp = partition, offset, pm.Timestamp
	return sent, nil
}

// Close 可重复调用.
func (p *KafkaProducer) Close() error {
	if p.closed.Swap(true) || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
