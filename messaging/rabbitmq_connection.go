package messaging

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// rabbitMQConnection 带自动重连的 RabbitMQ 连接.
type rabbitMQConnection struct {
	url            string
	conn           *amqp.Connection
	mu             sync.RWMutex
	closed         atomic.Bool
	reconnectDelay time.Duration
	logger         logger.Logger

	notifyClose chan *amqp.Error
	subsMu      sync.Mutex
	subscribers []chan struct{}
}

func newRabbitMQConnection(url string, log logger.Logger, reconnectDelay time.Duration) (*rabbitMQConnection, error) {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	c := &rabbitMQConnection{url: url, reconnectDelay: reconnectDelay, logger: log}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateClient, err)
	}
	go c.handleReconnect()
	return c, nil
}

func (c *rabbitMQConnection) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.notifyClose = conn.NotifyClose(make(chan *amqp.Error, 1))
	c.mu.Unlock()

	c.debug("[Messaging] RabbitMQ 连接已建立")
	return nil
}

func (c *rabbitMQConnection) handleReconnect() {
	for {
		c.mu.RLock()
		notify := c.notifyClose
		c.mu.RUnlock()

		err, ok := <-notify
		if !ok || c.closed.Load() {
			return
		}
		c.warn("[Messaging] RabbitMQ 连接断开，开始重连", err)

		for {
			if c.closed.Load() {
				return
			}
			time.Sleep(c.reconnectDelay)
			if err := c.connect(); err != nil {
				c.warn("[Messaging] RabbitMQ 重连失败", err)
				continue
			}
			break
		}
		c.broadcastReconnect()
	}
}

// reconnectNotify 返回一个在每次重连成功后收到通知的 channel.
func (c *rabbitMQConnection) reconnectNotify() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subsMu.Unlock()
	return ch
}

func (c *rabbitMQConnection) broadcastReconnect() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *rabbitMQConnection) channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if c.conn == nil || c.conn.IsClosed() {
		return nil, ErrNoBrokersAvailable
	}
	return c.conn.Channel()
}

func (c *rabbitMQConnection) healthy() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.conn == nil || c.conn.IsClosed() {
		return ErrNoBrokersAvailable
	}
	return nil
}

func (c *rabbitMQConnection) close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

func (c *rabbitMQConnection) debug(msg string) {
	if c.logger != nil {
		c.logger.Debug(msg)
	}
}

func (c *rabbitMQConnection) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.With(logger.Err(err)).Warn(msg)
	}
}
