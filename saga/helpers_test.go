package saga

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/messaging"
)

// fakeClock 可手动推进的时钟.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingProducer 记录发送的消息，可按命令注入失败.
type recordingProducer struct {
	mu       sync.Mutex
	messages []*messaging.Message
	failOn   map[string]bool
}

func newRecordingProducer() *recordingProducer {
	return &recordingProducer{failOn: make(map[string]bool)}
}

var errBrokerDown = errors.New("broker down")

func (p *recordingProducer) SendMessage(_ context.Context, msg *messaging.Message) (*messaging.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[msg.Header(messaging.HeaderEventType)] {
		return nil, errBrokerDown
	}
	p.messages = append(p.messages, msg)
	return msg, nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) setFail(command CommandName, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOn[string(command)] = fail
}

func (p *recordingProducer) commands() []*Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	cmds := make([]*Command, 0, len(p.messages))
	for _, msg := range p.messages {
		cmd, err := DecodeCommand(msg)
		if err != nil {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func (p *recordingProducer) commandNames() []CommandName {
	var names []CommandName
	for _, cmd := range p.commands() {
		names = append(names, cmd.Command)
	}
	return names
}

// stubRecorder 固定返回 ID 的副作用补录器.
type stubRecorder struct {
	mu      sync.Mutex
	id      string
	err     error
	effects []SideEffect
}

func (r *stubRecorder) EnsureRecorded(_ context.Context, effect SideEffect) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effect)
	return r.id, r.err
}

func sampleOrder() OrderData {
	return OrderData{
		CustomerID: "CUST001",
		Items: []OrderItem{
			{ProductID: "PROD001", ProductName: "Laptop", Quantity: 1, Price: 999.99},
			{ProductID: "PROD002", ProductName: "Mouse", Quantity: 2, Price: 29.99},
		},
	}
}

func successReply(s *Saga, command CommandName, data *ReplyData) *Reply {
	reply, _ := NewReply(&Command{SagaID: s.SagaID, OrderID: s.OrderID, Command: command}, ReplySuccess, data)
	return reply
}

func failedReply(s *Saga, command CommandName, data *ReplyData) *Reply {
	reply, _ := NewReply(&Command{SagaID: s.SagaID, OrderID: s.OrderID, Command: command}, ReplyFailed, data)
	return reply
}

// cancelAfterCreateStore 在 Create 成功后取消调用方 ctx，之后的读写遵循 ctx.
type cancelAfterCreateStore struct {
	*MemoryStore
	cancel context.CancelFunc
}

func (s *cancelAfterCreateStore) Create(ctx context.Context, sg *Saga) error {
	if err := s.MemoryStore.Create(ctx, sg); err != nil {
		return err
	}
	s.cancel()
	return nil
}

func (s *cancelAfterCreateStore) Get(ctx context.Context, sagaID string) (*Saga, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.Get(ctx, sagaID)
}

func (s *cancelAfterCreateStore) Update(ctx context.Context, sg *Saga) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Update(ctx, sg)
}
