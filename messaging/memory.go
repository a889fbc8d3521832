package messaging

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryBroker 进程内消息通道.
//
// 语义与 Kafka 消费者组一致: 每个消费组收到主题上的全部消息，
// 同组多个消费者竞争消费. 只投递订阅之后发布的消息.
// 队列不设上限，发布从不阻塞: 消费者在处理中再次发布时不会与其他消费者互相等待.
// 用于单进程部署与测试.
type MemoryBroker struct {
	mu     sync.RWMutex
	groups map[string]map[string]*memoryQueue // topic -> groupID -> queue
	offset atomic.Int64
	closed atomic.Bool
}

// memoryQueue 无界 FIFO，ready 在有新消息时唤醒一个等待者.
type memoryQueue struct {
	mu    sync.Mutex
	items []*Message
	ready chan struct{}
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{ready: make(chan struct{}, 1)}
}

func (q *memoryQueue) push(msg *Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.signal()
}

func (q *memoryQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop 阻塞到取出一条消息或 ctx 取消.
func (q *memoryQueue) pop(ctx context.Context) (*Message, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return msg, true
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (q *memoryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// NewMemoryBroker 创建内存消息通道.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{groups: make(map[string]map[string]*memoryQueue)}
}

func (b *MemoryBroker) queue(topic, groupID string) *memoryQueue {
	b.mu.Lock()
	defer b.mu.Unlock()

	byGroup, ok := b.groups[topic]
	if !ok {
		byGroup = make(map[string]*memoryQueue)
		b.groups[topic] = byGroup
	}
	q, ok := byGroup[groupID]
	if !ok {
		q = newMemoryQueue()
		byGroup[groupID] = q
	}
	return q
}

func (b *MemoryBroker) publish(_ context.Context, msg *Message) (*Message, error) {
	if b.closed.Load() {
		return nil, ErrClientClosed
	}

	sent := msg.clone()
	sent.Offset = b.offset.Add(1)
	sent.Timestamp = time.Now()

	b.mu.RLock()
	queues := make([]*memoryQueue, 0, len(b.groups[msg.Topic]))
	for _, q := range b.groups[msg.Topic] {
		queues = append(queues, q)
	}
	b.mu.RUnlock()

	for _, q := range queues {
		q.push(sent.clone())
	}
	return sent, nil
}

// Producer 返回内存生产者.
func (b *MemoryBroker) Producer(opts ...ProducerOption) Producer {
	options := &producerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return &memoryProducer{broker: b, opts: options}
}

// Consumer 返回指定消费组的内存消费者.
func (b *MemoryBroker) Consumer(groupID string, opts ...ConsumerOption) (Consumer, error) {
	if groupID == "" {
		return nil, ErrEmptyGroupID
	}
	options := defaultConsumerOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &memoryConsumer{broker: b, groupID: groupID, opts: options}, nil
}

// Close 关闭通道，之后的发布返回 ErrClientClosed.
func (b *MemoryBroker) Close() error {
	b.closed.Store(true)
	return nil
}

type memoryProducer struct {
	broker *MemoryBroker
	opts   *producerOptions
	closed atomic.Bool
}

func (p *memoryProducer) SendMessage(ctx context.Context, msg *Message) (*Message, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	return p.opts.send(ctx, TypeMemory, msg, p.broker.publish)
}

func (p *memoryProducer) Close() error {
	p.closed.Store(true)
	return nil
}

type memoryConsumer struct {
	broker  *MemoryBroker
	groupID string
	opts    *consumerOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *memoryConsumer) Consume(ctx context.Context, topics []string, handler MessageHandler) error {
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

	d := &dispatcher{groupID: c.groupID, system: TypeMemory, opts: c.opts, handler: handler}
	for _, topic := range topics {
		q := c.broker.queue(topic, c.groupID)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				msg, ok := q.pop(ctx)
				if !ok {
					return
				}
				_ = d.dispatch(ctx, msg)
			}
		}()
	}
	return nil
}

func (c *memoryConsumer) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}
