package order

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Tsukikage7/saga-orchestrator/saga"
)

func cancelCommand(t *testing.T, reason string) *saga.Command {
	t.Helper()
	cmd, err := saga.NewCommand("saga-1", "order-1", saga.CommandCancelOrder, saga.CancelCommandData{Reason: reason})
	require.NoError(t, err)
	return cmd
}

func TestCancelOrder(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"gorm": func(t *testing.T) Store {
			db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "order.db")), &gorm.Config{
				Logger: gormlogger.Discard,
			})
			require.NoError(t, err)
			store := NewGormStore(db)
			require.NoError(t, store.Migrate(context.Background()))
			return store
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			service := NewService(store, nil)
			first := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
			service.clock = func() time.Time { return first }

			data, err := service.CancelOrder(ctx, cancelCommand(t, "Insufficient funds"))
			require.NoError(t, err)
			require.NotNil(t, data.CancelledAt)
			assert.True(t, data.CancelledAt.Equal(first))

			o, err := store.Get(ctx, "order-1")
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, o.Status)
			assert.Equal(t, "Insufficient funds", o.FailureReason)
			assert.Equal(t, "saga-1", o.SagaID)

			// 重复取消保留首次时间
			service.clock = func() time.Time { return first.Add(time.Hour) }
			again, err := service.CancelOrder(ctx, cancelCommand(t, "other"))
			require.NoError(t, err)
			assert.True(t, again.CancelledAt.Equal(first))
		})
	}
}

func TestCancelOrder_DefaultReasonAndExistingOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, &Order{OrderID: "order-1", Status: StatusPaymentProcessing, CreatedAt: created}))

	service := NewService(store, nil)
	_, err := service.CancelOrder(ctx, cancelCommand(t, ""))
	require.NoError(t, err)

	o, err := store.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, defaultCancelReason, o.FailureReason)
	assert.True(t, o.CreatedAt.Equal(created))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
