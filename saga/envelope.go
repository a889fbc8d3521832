package saga

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/messaging"
)

// 主题与消费组.
const (
	TopicCommands = "orchestrator.saga"
	TopicReplies  = "orchestrator.reply"

	GroupOrchestrator = "orchestrator-service-group"
	GroupPayment      = "payment-service-group"
	GroupInventory    = "inventory-service-group"
	GroupOrder        = "order-service-group"
)

// CommandName 命令名称.
type CommandName string

// 正向命令与补偿命令.
const (
	CommandProcessPayment   CommandName = "PROCESS_PAYMENT"
	CommandReserveInventory CommandName = "RESERVE_INVENTORY"
	CommandReleaseInventory CommandName = "RELEASE_INVENTORY"
	CommandRefundPayment    CommandName = "REFUND_PAYMENT"
	CommandCancelOrder      CommandName = "CANCEL_ORDER"
)

// Compensation 是否为补偿命令.
func (c CommandName) Compensation() bool {
	return c == CommandReleaseInventory || c == CommandRefundPayment || c == CommandCancelOrder
}

// inverseCommand 返回步骤的补偿命令.
func inverseCommand(step StepName) (CommandName, bool) {
	switch step {
	case StepReserveInventory:
		return CommandReleaseInventory, true
	case StepProcessPayment:
		return CommandRefundPayment, true
	case StepCreateOrder:
		return CommandCancelOrder, true
	default:
		return "", false
	}
}

// ReplyStatus 回复状态.
type ReplyStatus string

// 回复状态常量.
const (
	ReplySuccess ReplyStatus = "SUCCESS"
	ReplyFailed  ReplyStatus = "FAILED"
)

// Command 命令信封.
type Command struct {
	SagaID  string          `json:"sagaId"`
	OrderID string          `json:"orderId"`
	Command CommandName     `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Reply 回复信封.
type Reply struct {
	SagaID  string          `json:"sagaId"`
	OrderID string          `json:"orderId"`
	Command CommandName     `json:"command"`
	Status  ReplyStatus     `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PaymentCommandData PROCESS_PAYMENT 参数.
type PaymentCommandData struct {
	CustomerID string  `json:"customerId"`
	Amount     float64 `json:"amount"`
}

// InventoryCommandData RESERVE_INVENTORY / RELEASE_INVENTORY 参数.
type InventoryCommandData struct {
	Items []OrderItem `json:"items"`
}

// RefundCommandData REFUND_PAYMENT 参数.
type RefundCommandData struct {
	PaymentID string `json:"paymentId"`
}

// CancelCommandData CANCEL_ORDER 参数.
type CancelCommandData struct {
	Reason string `json:"reason"`
}

// ReplyData 回复数据.
//
// 失败回复中 RemoteSideEffectConfirmed 为 true 表示参与方的远程副作用已确认发生
// （例如网关已扣款，但本地记录写入失败），编排器会尝试就地恢复而不是补偿.
type ReplyData struct {
	PaymentID     string      `json:"paymentId,omitempty"`
	TransactionID string      `json:"transactionId,omitempty"`
	ReservationID string      `json:"reservationId,omitempty"`
	Items         []OrderItem `json:"items,omitempty"`
	Released      *bool       `json:"released,omitempty"`
	RefundedAt    *time.Time  `json:"refundedAt,omitempty"`
	CancelledAt   *time.Time  `json:"cancelledAt,omitempty"`

	Reason                    string         `json:"reason,omitempty"`
	RemoteSideEffectConfirmed bool           `json:"remoteSideEffectConfirmed,omitempty"`
	Confirmation              map[string]any `json:"confirmation,omitempty"`
}

// NewCommand 创建命令，data 编码为 JSON.
func NewCommand(sagaID, orderID string, name CommandName, data any) (*Command, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return &Command{SagaID: sagaID, OrderID: orderID, Command: name, Data: raw}, nil
}

// NewReply 创建回复，data 编码为 JSON.
func NewReply(cmd *Command, status ReplyStatus, data *ReplyData) (*Reply, error) {
	reply := &Reply{SagaID: cmd.SagaID, OrderID: cmd.OrderID, Command: cmd.Command, Status: status}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, err)
		}
		reply.Data = raw
	}
	return reply, nil
}

// DecodeData 将命令参数解码到 v.
func (c *Command) DecodeData(v any) error {
	if len(c.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// DecodeData 解码回复数据，数据为空时返回零值.
func (r *Reply) DecodeData() (*ReplyData, error) {
	var data ReplyData
	if len(r.Data) == 0 {
		return &data, nil
	}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &data, nil
}

// dataMap 将回复数据解码为通用 map，用于记录到步骤.
func (r *Reply) dataMap() map[string]any {
	if len(r.Data) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(r.Data, &m); err != nil {
		return nil
	}
	return m
}

// Message 将命令编码为发往 TopicCommands 的消息.
func (c *Command) Message() (*messaging.Message, error) {
	return encodeMessage(TopicCommands, c.SagaID, string(c.Command), c)
}

// Message 将回复编码为发往 TopicReplies 的消息.
func (r *Reply) Message() (*messaging.Message, error) {
	return encodeMessage(TopicReplies, r.SagaID, string(r.Command), r)
}

func encodeMessage(topic, key, eventType string, v any) (*messaging.Message, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return &messaging.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: body,
		Headers: map[string]string{
			messaging.HeaderTimestamp: time.Now().UTC().Format(time.RFC3339Nano),
			messaging.HeaderEventType: eventType,
		},
	}, nil
}

// DecodeCommand 解码命令消息.
func DecodeCommand(msg *messaging.Message) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cmd.SagaID == "" || cmd.Command == "" {
		return nil, fmt.Errorf("%w: 缺少 sagaId 或 command", ErrDecode)
	}
	return &cmd, nil
}

// DecodeReply 解码回复消息.
func DecodeReply(msg *messaging.Message) (*Reply, error) {
	var reply Reply
	if err := json.Unmarshal(msg.Value, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if reply.SagaID == "" || reply.Command == "" {
		return nil, fmt.Errorf("%w: 缺少 sagaId 或 command", ErrDecode)
	}
	return &reply, nil
}
