// Package saga 提供订单 → 支付 → 库存的编排式 Saga.
//
// 编排器持有固定的四个步骤，每个远程步骤通过消息通道发送命令并异步等待回复.
// 任一步骤失败时，按声明逆序对已成功的步骤发送补偿命令.
//
// 基本用法:
//
//	orch := saga.NewOrchestrator(store, producer,
//	    saga.WithLogger(log),
//	    saga.WithLocker(lock.NewKeyed()),
//	)
//
//	s, err := orch.StartSaga(ctx, saga.OrderData{
//	    CustomerID: "CUST001",
//	    Items:      []saga.OrderItem{{ProductID: "PROD001", Quantity: 1, Price: 999.99}},
//	})
//
//	// 回复由消息通道驱动
//	consumer.Consume(ctx, []string{saga.TopicReplies}, orch.HandleReply)
package saga

import (
	"encoding/json"
	"slices"
	"time"
)

// Saga 一次订单事务的完整状态.
type Saga struct {
	SagaID             string         `json:"sagaId" bson:"sagaId"`
	OrderID            string         `json:"orderId" bson:"orderId"`
	Status             Status         `json:"status" bson:"status"`
	CurrentStep        StepName       `json:"currentStep" bson:"currentStep"`
	Steps              []Step         `json:"steps" bson:"steps"`
	OrderData          OrderData      `json:"orderData" bson:"orderData"`
	PaymentID          string         `json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	ReservationID      string         `json:"reservationId,omitempty" bson:"reservationId,omitempty"`
	CompensationReason string         `json:"compensationReason,omitempty" bson:"compensationReason,omitempty"`
	Confirmation       map[string]any `json:"confirmation,omitempty" bson:"confirmation,omitempty"`
	RetryHistory       []RetryRecord  `json:"retryHistory,omitempty" bson:"retryHistory,omitempty"`
	LastRetryAt        *time.Time     `json:"lastRetryAt,omitempty" bson:"lastRetryAt,omitempty"`
	CreatedAt          time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Step 步骤执行记录.
type Step struct {
	Name        StepName       `json:"name" bson:"name"`
	Status      StepStatus     `json:"status" bson:"status"`
	StartedAt   *time.Time     `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	Error       string         `json:"error,omitempty" bson:"error,omitempty"`
	Data        map[string]any `json:"data,omitempty" bson:"data,omitempty"`
}

// OrderData 订单数据，创建后不可修改.
type OrderData struct {
	CustomerID  string      `json:"customerId" bson:"customerId"`
	Items       []OrderItem `json:"items" bson:"items"`
	TotalAmount float64     `json:"totalAmount" bson:"totalAmount"`
}

// OrderItem 订单项.
type OrderItem struct {
	ProductID   string  `json:"productId" bson:"productId"`
	ProductName string  `json:"productName,omitempty" bson:"productName,omitempty"`
	Quantity    int     `json:"quantity" bson:"quantity"`
	Price       float64 `json:"price" bson:"price"`
}

// RetryRecord 重试记录，只追加.
type RetryRecord struct {
	RetryAt  time.Time `json:"retryAt" bson:"retryAt"`
	FromStep StepName  `json:"fromStep" bson:"fromStep"`
	Result   string    `json:"result" bson:"result"`
	Error    string    `json:"error,omitempty" bson:"error,omitempty"`
}

// 重试结果.
const (
	RetryResultStarted = "STARTED"
	RetryResultFailed  = "FAILED"
)

// newSteps 返回固定顺序的四个 PENDING 步骤.
func newSteps() []Step {
	steps := make([]Step, len(stepOrder))
	for i, name := range stepOrder {
		steps[i] = Step{Name: name, Status: StepPending}
	}
	return steps
}

// Total 按单价×数量计算订单总额.
func (d OrderData) Total() float64 {
	var total float64
	for _, item := range d.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// Step 返回指定名称的步骤，不存在时返回 nil.
func (s *Saga) Step(name StepName) *Step {
	i := s.stepIndex(name)
	if i < 0 {
		return nil
	}
	return &s.Steps[i]
}

func (s *Saga) stepIndex(name StepName) int {
	return slices.IndexFunc(s.Steps, func(st Step) bool { return st.Name == name })
}

// inProgressStep 返回处于 IN_PROGRESS 的步骤.
func (s *Saga) inProgressStep() *Step {
	for i := range s.Steps {
		if s.Steps[i].Status == StepInProgress {
			return &s.Steps[i]
		}
	}
	return nil
}

// Clone 深拷贝 Saga.
func (s *Saga) Clone() *Saga {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		c := *s
		return &c
	}
	var c Saga
	if err := json.Unmarshal(data, &c); err != nil {
		c = *s
	}
	return &c
}
