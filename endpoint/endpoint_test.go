package endpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	e := Chain(mw("outer"), mw("first"), mw("second"))(func(context.Context, any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	})

	resp, err := e(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, []string{"outer", "first", "second", "endpoint"}, order)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	boom := errors.New("boom")

	ok := LoggingMiddleware(log, "GetSaga")(func(context.Context, any) (any, error) { return 1, nil })
	fail := LoggingMiddleware(log, "RetrySaga")(func(context.Context, any) (any, error) { return nil, boom })

	_, err := ok(context.Background(), nil)
	require.NoError(t, err)
	_, err = fail(context.Background(), nil)
	require.ErrorIs(t, err, boom)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "[Endpoint] 请求完成", entries[0].Message)
	assert.Equal(t, "GetSaga", entries[0].ContextMap()["operation"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "RetrySaga", entries[1].ContextMap()["operation"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := RecoveryMiddleware(logger.NewWithCore(core), "CreateOrder")(func(context.Context, any) (any, error) {
		panic("nil map")
	})

	resp, err := e(context.Background(), nil)
	assert.Nil(t, resp)

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "nil map", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "CreateOrder", entries[0].ContextMap()["operation"])
}

func TestTimeoutMiddleware(t *testing.T) {
	deadlineIn := func(ctx context.Context, _ any) (any, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			return time.Duration(0), nil
		}
		return time.Until(deadline), nil
	}

	t.Run("设置截止时间", func(t *testing.T) {
		resp, err := TimeoutMiddleware(time.Minute)(deadlineIn)(context.Background(), nil)
		require.NoError(t, err)
		assert.InDelta(t, time.Minute, resp.(time.Duration), float64(time.Second))
	})

	t.Run("父 context 更早到期时沿用", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		resp, err := TimeoutMiddleware(time.Minute)(deadlineIn)(ctx, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, resp.(time.Duration), time.Second)
	})

	t.Run("非正数不设置", func(t *testing.T) {
		resp, err := TimeoutMiddleware(0)(deadlineIn)(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), resp)
	})

	t.Run("超时返回 DeadlineExceeded", func(t *testing.T) {
		e := TimeoutMiddleware(10 * time.Millisecond)(func(ctx context.Context, _ any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		_, err := e(context.Background(), nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
