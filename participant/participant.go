// Package participant 提供参与方服务的命令分发.
//
// Dispatcher 订阅命令主题，按命令名路由到已注册的处理函数，并为每条命令发布一条回复.
// 处理函数返回错误时回复 FAILED，错误信息作为失败原因.
//
// 重复投递按 sagaId:command 去重: 成功结果会被保存并在重复消息到达时原样重发；
// 失败不保存，之后的人工重试会重新执行.
package participant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/idempotency"
	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/messaging"
	"github.com/Tsukikage7/saga-orchestrator/saga"
)

// 预定义错误.
var (
	// ErrNilProducer 生产者为空.
	ErrNilProducer = errors.New("participant: 生产者不能为空")
	// ErrInProgress 同一命令正在其他实例处理中.
	ErrInProgress = errors.New("participant: 命令正在处理中")
)

// Handler 执行命令并返回回复数据.
type Handler func(ctx context.Context, cmd *saga.Command) (*saga.ReplyData, error)

// Failure 携带回复数据的失败.
//
// 用于需要在 FAILED 回复中附带数据的场景，例如远程副作用已确认.
type Failure struct {
	Reason string
	Data   *saga.ReplyData
}

func (f *Failure) Error() string {
	return f.Reason
}

// Option 配置选项函数.
type Option func(*Dispatcher)

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

// WithIdempotency 启用重复投递去重.
//
// claimTTL 为处理占位的有效期，resultTTL 为成功结果的保存时长.
func WithIdempotency(store idempotency.Store, claimTTL, resultTTL time.Duration) Option {
	return func(d *Dispatcher) {
		d.store = store
		if claimTTL > 0 {
			d.claimTTL = claimTTL
		}
		if resultTTL > 0 {
			d.resultTTL = resultTTL
		}
	}
}

// Dispatcher 参与方命令分发器.
type Dispatcher struct {
	name      string
	producer  messaging.Producer
	handlers  map[saga.CommandName]Handler
	store     idempotency.Store
	claimTTL  time.Duration
	resultTTL time.Duration
	logger    logger.Logger
}

// NewDispatcher 创建分发器，name 为服务名，用于日志.
func NewDispatcher(name string, producer messaging.Producer, opts ...Option) (*Dispatcher, error) {
	if producer == nil {
		return nil, ErrNilProducer
	}
	d := &Dispatcher{
		name:      name,
		producer:  producer,
		handlers:  make(map[saga.CommandName]Handler),
		claimTTL:  time.Minute,
		resultTTL: idempotency.DefaultTTL,
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.String("participant", name))
	return d, nil
}

// Register 注册命令处理函数.
func (d *Dispatcher) Register(command saga.CommandName, h Handler) {
	d.handlers[command] = h
}

// Commands 返回已注册的命令.
func (d *Dispatcher) Commands() []saga.CommandName {
	names := make([]saga.CommandName, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Handle 处理命令消息，可直接作为 messaging.MessageHandler 使用.
//
// 命令主题由所有参与方共享，未注册的命令直接忽略.
func (d *Dispatcher) Handle(ctx context.Context, msg *messaging.Message) error {
	cmd, err := saga.DecodeCommand(msg)
	if err != nil {
		d.logger.WithContext(ctx).With(logger.Err(err)).Warn("[Participant] 命令解码失败，已丢弃")
		return nil
	}

	h, ok := d.handlers[cmd.Command]
	if !ok {
		return nil
	}

	log := d.logger.WithContext(ctx).With(
		logger.SagaID(cmd.SagaID),
		logger.OrderID(cmd.OrderID),
		logger.String("command", string(cmd.Command)),
	)

	key := dedupeKey(cmd)
	if d.store != nil {
		claimed, err := d.store.SetNX(ctx, key, d.claimTTL)
		if err != nil {
			return fmt.Errorf("participant: 幂等占位失败: %w", err)
		}
		if !claimed {
			return d.replay(ctx, log, key)
		}
	}

	data, herr := h(ctx, cmd)
	status := saga.ReplySuccess
	if herr != nil {
		status = saga.ReplyFailed
		data = failureData(herr)
		log.With(logger.String("reason", data.Reason)).Warn("[Participant] 命令执行失败")
	} else {
		log.Info("[Participant] 命令执行成功")
	}

	reply, err := saga.NewReply(cmd, status, data)
	if err != nil {
		d.release(ctx, log, key)
		return err
	}
	out, err := reply.Message()
	if err != nil {
		d.release(ctx, log, key)
		return err
	}

	if status == saga.ReplySuccess && d.store != nil {
		if err := d.store.Set(ctx, key, &idempotency.Result{
			Status:    string(status),
			Body:      out.Value,
			CreatedAt: time.Now(),
		}, d.resultTTL); err != nil {
			log.With(logger.Err(err)).Error("[Participant] 保存处理结果失败")
		}
	}
	if status == saga.ReplyFailed {
		d.release(ctx, log, key)
	}

	if _, err := d.producer.SendMessage(ctx, out); err != nil {
		log.With(logger.Err(err)).Error("[Participant] 回复发送失败")
		return err
	}
	return nil
}

// replay 重发已保存的成功回复；仍在处理中时返回错误，消息稍后重试.
func (d *Dispatcher) replay(ctx context.Context, log logger.Logger, key string) error {
	result, err := d.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if result == nil {
		log.Debug("[Participant] 命令正在处理中")
		return ErrInProgress
	}

	reply, err := saga.DecodeReply(&messaging.Message{Value: result.Body})
	if err != nil {
		return err
	}
	out, err := reply.Message()
	if err != nil {
		return err
	}
	log.Info("[Participant] 重复命令，重发已保存的回复")
	_, err = d.producer.SendMessage(ctx, out)
	return err
}

func (d *Dispatcher) release(ctx context.Context, log logger.Logger, key string) {
	if d.store == nil {
		return
	}
	if err := d.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.With(logger.Err(err)).Warn("[Participant] 释放幂等占位失败")
	}
}

func dedupeKey(cmd *saga.Command) string {
	return cmd.SagaID + ":" + string(cmd.Command)
}

// failureData 将错误转换为 FAILED 回复数据.
func failureData(err error) *saga.ReplyData {
	var f *Failure
	if errors.As(err, &f) {
		data := saga.ReplyData{}
		if f.Data != nil {
			data = *f.Data
		}
		data.Reason = f.Reason
		return &data
	}
	return &saga.ReplyData{Reason: err.Error()}
}
