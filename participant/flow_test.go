package participant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/saga-orchestrator/idempotency"
	"github.com/Tsukikage7/saga-orchestrator/messaging"
	"github.com/Tsukikage7/saga-orchestrator/participant"
	"github.com/Tsukikage7/saga-orchestrator/participant/inventory"
	"github.com/Tsukikage7/saga-orchestrator/participant/order"
	"github.com/Tsukikage7/saga-orchestrator/participant/payment"
	"github.com/Tsukikage7/saga-orchestrator/saga"
)

// FlowTestSuite 编排器与三个参与方通过内存消息通道协作的完整流程.
type FlowTestSuite struct {
	suite.Suite

	ctx       context.Context
	cancel    context.CancelFunc
	broker    *messaging.MemoryBroker
	consumers []messaging.Consumer
	dedupe    *idempotency.MemoryStore

	orch      *saga.Orchestrator
	payments  *payment.MemoryStore
	inventory *inventory.MemoryStore
	orders    *order.MemoryStore
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowTestSuite))
}

func (s *FlowTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.broker = messaging.NewMemoryBroker()
	s.consumers = nil
	s.dedupe = idempotency.NewMemoryStore()

	s.payments = payment.NewMemoryStore()
	s.inventory = inventory.NewMemoryStore()
	s.orders = order.NewMemoryStore()

	orch, err := saga.NewOrchestrator(saga.NewMemoryStore(), s.broker.Producer(),
		saga.WithSideEffectRecorder(saga.StepProcessPayment, payment.NewRecorder(s.payments)),
	)
	s.Require().NoError(err)
	s.orch = orch
	s.consume(saga.GroupOrchestrator, saga.TopicReplies, orch.HandleReply)

	paymentSvc := payment.NewService(s.payments, &payment.SimulatedGateway{MaxAmount: 1000})
	inventorySvc := inventory.NewService(s.inventory)
	s.Require().NoError(inventorySvc.SeedSampleProducts(s.ctx))
	orderSvc := order.NewService(s.orders, nil)

	s.serve(saga.GroupPayment, paymentSvc.Register)
	s.serve(saga.GroupInventory, inventorySvc.Register)
	s.serve(saga.GroupOrder, orderSvc.Register)
}

func (s *FlowTestSuite) TearDownTest() {
	for _, c := range s.consumers {
		s.Require().NoError(c.Close())
	}
	s.cancel()
	s.Require().NoError(s.broker.Close())
	s.Require().NoError(s.dedupe.Close())
}

func (s *FlowTestSuite) consume(group, topic string, handler messaging.MessageHandler) {
	consumer, err := s.broker.Consumer(group, messaging.WithRetry(5, 10*time.Millisecond))
	s.Require().NoError(err)
	s.Require().NoError(consumer.Consume(s.ctx, []string{topic}, handler))
	s.consumers = append(s.consumers, consumer)
}

func (s *FlowTestSuite) serve(group string, register func(*participant.Dispatcher)) {
	d, err := participant.NewDispatcher(group, s.broker.Producer(),
		participant.WithIdempotency(s.dedupe, time.Minute, time.Hour),
	)
	s.Require().NoError(err)
	register(d)
	s.consume(group, saga.TopicCommands, d.Handle)
}

func (s *FlowTestSuite) awaitStatus(sagaID string, want saga.Status) *saga.Saga {
	var last *saga.Saga
	s.Require().Eventually(func() bool {
		got, err := s.orch.GetSaga(s.ctx, sagaID)
		if err != nil {
			return false
		}
		last = got
		return got.Status == want
	}, 3*time.Second, 10*time.Millisecond, "saga never reached %s", want)
	return last
}

func stepStatuses(sg *saga.Saga) map[saga.StepName]saga.StepStatus {
	out := make(map[saga.StepName]saga.StepStatus, len(sg.Steps))
	for _, step := range sg.Steps {
		out[step.Name] = step.Status
	}
	return out
}

func (s *FlowTestSuite) TestOrderCompletes() {
	started, err := s.orch.StartSaga(s.ctx, saga.OrderData{
		CustomerID: "CUST001",
		Items:      []saga.OrderItem{{ProductID: "PROD002", Quantity: 2, Price: 29.99}},
	})
	s.Require().NoError(err)

	done := s.awaitStatus(started.SagaID, saga.StatusCompleted)
	s.NotEmpty(done.PaymentID)
	s.NotEmpty(done.ReservationID)
	for name, status := range stepStatuses(done) {
		s.Equal(saga.StepSuccess, status, name)
	}

	pay, err := s.payments.GetByOrderID(s.ctx, done.OrderID)
	s.Require().NoError(err)
	s.Equal(payment.StatusSuccess, pay.Status)
	s.InDelta(59.98, pay.Amount, 0.001)

	product, err := s.inventory.GetProduct(s.ctx, "PROD002")
	s.Require().NoError(err)
	s.Equal(198, product.AvailableQuantity)
}

func (s *FlowTestSuite) TestPaymentDeclinedFailsSaga() {
	started, err := s.orch.StartSaga(s.ctx, saga.OrderData{
		CustomerID: "CUST002",
		Items:      []saga.OrderItem{{ProductID: "PROD001", Quantity: 2, Price: 999.99}},
	})
	s.Require().NoError(err)

	failed := s.awaitStatus(started.SagaID, saga.StatusFailed)
	steps := stepStatuses(failed)
	s.Equal(saga.StepFailed, steps[saga.StepProcessPayment])
	s.Equal(saga.StepPending, steps[saga.StepReserveInventory])

	pay, err := s.payments.GetByOrderID(s.ctx, failed.OrderID)
	s.Require().NoError(err)
	s.Equal(payment.StatusFailed, pay.Status)

	product, err := s.inventory.GetProduct(s.ctx, "PROD001")
	s.Require().NoError(err)
	s.Equal(50, product.AvailableQuantity)
}

func (s *FlowTestSuite) TestInsufficientInventoryCompensates() {
	started, err := s.orch.StartSaga(s.ctx, saga.OrderData{
		CustomerID: "CUST003",
		Items:      []saga.OrderItem{{ProductID: "PROD004", Quantity: 31, Price: 1}},
	})
	s.Require().NoError(err)

	compensated := s.awaitStatus(started.SagaID, saga.StatusCompensated)
	steps := stepStatuses(compensated)
	s.Equal(saga.StepCompensated, steps[saga.StepCreateOrder])
	s.Equal(saga.StepCompensated, steps[saga.StepProcessPayment])
	s.Equal(saga.StepFailed, steps[saga.StepReserveInventory])

	s.Require().Eventually(func() bool {
		pay, err := s.payments.GetByOrderID(s.ctx, compensated.OrderID)
		return err == nil && pay.Status == payment.StatusRefunded
	}, 3*time.Second, 10*time.Millisecond)

	s.Require().Eventually(func() bool {
		o, err := s.orders.Get(s.ctx, compensated.OrderID)
		return err == nil && o.Status == order.StatusCancelled
	}, 3*time.Second, 10*time.Millisecond)

	product, err := s.inventory.GetProduct(s.ctx, "PROD004")
	s.Require().NoError(err)
	s.Equal(30, product.AvailableQuantity)
}

func TestFlow_RedeliveredCommandRunsOnce(t *testing.T) {
	ctx := context.Background()
	dedupe := idempotency.NewMemoryStore()
	defer dedupe.Close()

	broker := messaging.NewMemoryBroker()
	defer broker.Close()
	replies, err := broker.Consumer(saga.GroupOrchestrator)
	require.NoError(t, err)
	got := make(chan *messaging.Message, 4)
	require.NoError(t, replies.Consume(ctx, []string{saga.TopicReplies}, func(_ context.Context, msg *messaging.Message) error {
		got <- msg
		return nil
	}))
	defer replies.Close()

	payments := payment.NewMemoryStore()
	svc := payment.NewService(payments, &payment.SimulatedGateway{})
	d, err := participant.NewDispatcher("payment", broker.Producer(), participant.WithIdempotency(dedupe, time.Minute, time.Hour))
	require.NoError(t, err)
	svc.Register(d)

	cmd, err := saga.NewCommand("saga-dup", "ORD-DUP", saga.CommandProcessPayment, saga.PaymentCommandData{CustomerID: "CUST001", Amount: 42})
	require.NoError(t, err)
	msg, err := cmd.Message()
	require.NoError(t, err)

	require.NoError(t, d.Handle(ctx, msg))
	require.NoError(t, d.Handle(ctx, msg))

	var ids []string
	for range 2 {
		select {
		case m := <-got:
			reply, err := saga.DecodeReply(m)
			require.NoError(t, err)
			require.Equal(t, saga.ReplySuccess, reply.Status)
			data, err := reply.DecodeData()
			require.NoError(t, err)
			ids = append(ids, data.PaymentID)
		case <-time.After(time.Second):
			t.Fatal("reply not delivered")
		}
	}
	require.Equal(t, ids[0], ids[1])

	pay, err := payments.GetByOrderID(ctx, "ORD-DUP")
	require.NoError(t, err)
	require.Equal(t, ids[0], pay.PaymentID)
}
