package payment

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Tsukikage7/saga-orchestrator/participant"
	"github.com/Tsukikage7/saga-orchestrator/saga"
)

// flakyStore 在第 N 次 Update 时失败.
type flakyStore struct {
	Store
	failOnUpdate int32
	updates      atomic.Int32
}

func (f *flakyStore) Update(ctx context.Context, p *Payment) error {
	if f.updates.Add(1) == f.failOnUpdate {
		return errors.New("connection reset")
	}
	return f.Store.Update(ctx, p)
}

func command(t *testing.T, name saga.CommandName, data any) *saga.Command {
	t.Helper()
	cmd, err := saga.NewCommand("saga-1", "order-1", name, data)
	require.NoError(t, err)
	return cmd
}

type PaymentServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	store   *MemoryStore
	service *Service
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func (s *PaymentServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
	s.service = NewService(s.store, &SimulatedGateway{MaxAmount: 1000})
}

func (s *PaymentServiceTestSuite) TestProcessPayment_Success() {
	cmd := command(s.T(), saga.CommandProcessPayment, saga.PaymentCommandData{CustomerID: "CUST001", Amount: 99.5})

	data, err := s.service.ProcessPayment(s.ctx, cmd)
	s.Require().NoError(err)
	s.NotEmpty(data.PaymentID)
	s.Contains(data.TransactionID, "TXN-")

	p, err := s.store.GetByOrderID(s.ctx, "order-1")
	s.Require().NoError(err)
	s.Equal(StatusSuccess, p.Status)
	s.Equal(data.PaymentID, p.PaymentID)
	s.InDelta(99.5, p.Amount, 1e-9)

	again, err := s.service.ProcessPayment(s.ctx, cmd)
	s.Require().NoError(err)
	s.Equal(data, again)
}

func (s *PaymentServiceTestSuite) TestProcessPayment_DeclinedThenRetried() {
	cmd := command(s.T(), saga.CommandProcessPayment, saga.PaymentCommandData{CustomerID: "CUST001", Amount: 5000})

	_, err := s.service.ProcessPayment(s.ctx, cmd)
	s.Require().ErrorIs(err, ErrDeclined)

	p, err := s.store.GetByOrderID(s.ctx, "order-1")
	s.Require().NoError(err)
	s.Equal(StatusFailed, p.Status)
	s.NotEmpty(p.FailureReason)

	retry := command(s.T(), saga.CommandProcessPayment, saga.PaymentCommandData{CustomerID: "CUST001", Amount: 500})
	data, err := s.service.ProcessPayment(s.ctx, retry)
	s.Require().NoError(err)
	s.Equal(p.PaymentID, data.PaymentID, "retry reuses the order's payment record")
}

func (s *PaymentServiceTestSuite) TestProcessPayment_RecordWriteFailure() {
	flaky := &flakyStore{Store: s.store, failOnUpdate: 1}
	service := NewService(flaky, &SimulatedGateway{})
	cmd := command(s.T(), saga.CommandProcessPayment, saga.PaymentCommandData{CustomerID: "CUST001", Amount: 10})

	_, err := service.ProcessPayment(s.ctx, cmd)
	var failure *participant.Failure
	s.Require().ErrorAs(err, &failure)
	s.True(failure.Data.RemoteSideEffectConfirmed)
	s.NotEmpty(failure.Data.TransactionID)
	s.Equal(failure.Data.TransactionID, failure.Data.Confirmation["transactionId"])

	// 补录后订单只有一条成功支付
	recorder := NewRecorder(s.store)
	id, err := recorder.EnsureRecorded(s.ctx, saga.SideEffect{
		SagaID:  "saga-1",
		OrderID: "order-1",
		Step:    saga.StepProcessPayment,
		Amount:  10,
		Data:    failure.Data,
	})
	s.Require().NoError(err)

	p, err := s.store.GetByOrderID(s.ctx, "order-1")
	s.Require().NoError(err)
	s.Equal(id, p.PaymentID)
	s.Equal(StatusSuccess, p.Status)
	s.Equal(failure.Data.TransactionID, p.TransactionID)

	again, err := recorder.EnsureRecorded(s.ctx, saga.SideEffect{OrderID: "order-1", Data: failure.Data})
	s.Require().NoError(err)
	s.Equal(id, again)
}

func (s *PaymentServiceTestSuite) TestRecorder_CreatesMissingRecord() {
	recorder := NewRecorder(s.store)
	id, err := recorder.EnsureRecorded(s.ctx, saga.SideEffect{
		SagaID:     "saga-2",
		OrderID:    "order-2",
		CustomerID: "CUST002",
		Amount:     42,
		Data:       &saga.ReplyData{TransactionID: "TXN-EXT"},
	})
	s.Require().NoError(err)

	p, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(StatusSuccess, p.Status)
	s.Equal("TXN-EXT", p.TransactionID)
	s.Equal("CUST002", p.CustomerID)
}

func (s *PaymentServiceTestSuite) TestRefundPayment() {
	_, err := s.service.RefundPayment(s.ctx, command(s.T(), saga.CommandRefundPayment, saga.RefundCommandData{}))
	s.ErrorIs(err, ErrNotRefundable)

	paid, err := s.service.ProcessPayment(s.ctx, command(s.T(), saga.CommandProcessPayment, saga.PaymentCommandData{CustomerID: "CUST001", Amount: 10}))
	s.Require().NoError(err)

	refund := command(s.T(), saga.CommandRefundPayment, saga.RefundCommandData{PaymentID: paid.PaymentID})
	data, err := s.service.RefundPayment(s.ctx, refund)
	s.Require().NoError(err)
	s.Equal(paid.PaymentID, data.PaymentID)
	s.Require().NotNil(data.RefundedAt)

	again, err := s.service.RefundPayment(s.ctx, refund)
	s.Require().NoError(err)
	s.True(again.RefundedAt.Equal(*data.RefundedAt))

	p, _ := s.store.GetByOrderID(s.ctx, "order-1")
	s.Equal(StatusRefunded, p.Status)
}

func (s *PaymentServiceTestSuite) TestRefundPayment_FailedPaymentNotRefundable() {
	_, err := s.service.ProcessPayment(s.ctx, command(s.T(), saga.CommandProcessPayment, saga.PaymentCommandData{CustomerID: "CUST001", Amount: 5000}))
	s.Require().Error(err)

	_, err = s.service.RefundPayment(s.ctx, command(s.T(), saga.CommandRefundPayment, saga.RefundCommandData{}))
	s.ErrorIs(err, ErrNotRefundable)
}

func TestSimulatedGateway(t *testing.T) {
	g := &SimulatedGateway{MaxAmount: 100}
	ctx := context.Background()

	tests := []struct {
		name    string
		amount  float64
		wantErr bool
	}{
		{"批准", 50, false},
		{"上限内", 100, false},
		{"超过上限", 100.01, true},
		{"零金额", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charge, err := g.Charge(ctx, ChargeRequest{OrderID: "o", Amount: tt.amount})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDeclined)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, charge.TransactionID)
		})
	}

	a, _ := (&SimulatedGateway{}).Charge(ctx, ChargeRequest{Amount: 1})
	b, _ := (&SimulatedGateway{}).Charge(ctx, ChargeRequest{Amount: 1})
	assert.NotEqual(t, a.TransactionID, b.TransactionID)
}

func TestGormStore(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "payment.db")), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	store := NewGormStore(db)
	require.NoError(t, store.Migrate(ctx))

	service := NewService(store, &SimulatedGateway{})
	cmd := command(t, saga.CommandProcessPayment, saga.PaymentCommandData{CustomerID: "CUST001", Amount: 10})
	data, err := service.ProcessPayment(ctx, cmd)
	require.NoError(t, err)

	p, err := store.Get(ctx, data.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, p.Status)
	assert.Equal(t, data.TransactionID, p.TransactionID)

	assert.ErrorIs(t, store.Create(ctx, &Payment{PaymentID: "other", OrderID: "order-1"}), ErrDuplicate)
	assert.ErrorIs(t, store.Update(ctx, &Payment{PaymentID: "missing"}), ErrPaymentNotFound)
	_, err = store.GetByOrderID(ctx, "missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	refund, err := service.RefundPayment(ctx, command(t, saga.CommandRefundPayment, saga.RefundCommandData{PaymentID: data.PaymentID}))
	require.NoError(t, err)
	require.NotNil(t, refund.RefundedAt)

	p, err = store.GetByOrderID(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
	require.NotNil(t, p.RefundedAt)
}
