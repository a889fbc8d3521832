package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCode(t *testing.T) {
	cause := errors.New("saga not found")

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil 为成功", nil, CodeSuccess},
		{"业务错误", NewError(CodeNotFound), CodeNotFound},
		{"包装后的业务错误", fmt.Errorf("get saga: %w", Wrap(CodeNotFound, cause)), CodeNotFound},
		{"错误码直接作为错误", CodeConflict, CodeConflict},
		{"普通错误视为内部错误", cause, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, ExtractCode(tt.err).Is(tt.want))
		})
	}
}

func TestExtractMessage(t *testing.T) {
	assert.Equal(t, "成功", ExtractMessage(nil))
	assert.Equal(t, "订单不能为空", ExtractMessage(NewErrorWithMessage(CodeInvalidParam, "订单不能为空")))
	assert.Equal(t, "资源不存在", ExtractMessage(NewError(CodeNotFound)))
	assert.Equal(t, "服务器内部错误", ExtractMessage(WrapWithMessage(CodeInternal, "dial tcp 10.0.0.1", errors.New("refused"))))
	assert.Equal(t, "消息通道错误", ExtractMessage(Wrap(CodeBrokerError, errors.New("no brokers"))))
}

func TestError(t *testing.T) {
	cause := errors.New("retry not allowed")
	err := WrapWithMessage(CodeConflict, "仅失败的 Saga 可以重试", cause)

	assert.Equal(t, "仅失败的 Saga 可以重试: retry not allowed", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "当前状态不允许该操作", NewError(CodeConflict).PublicMessage())
	assert.Equal(t, "自定义", CodeInternal.WithMessage("自定义").Message)

	found, ok := AsError(fmt.Errorf("retry saga: %w", err))
	require.True(t, ok)
	assert.Same(t, err, found)
	_, ok = AsError(cause)
	assert.False(t, ok)
}

func TestWrite(t *testing.T) {
	t.Run("WriteCreated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, WriteCreated(rec, map[string]string{"sagaId": "s-1"}, "订单已创建"))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		var body Response[map[string]string]
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.True(t, body.IsSuccess())
		assert.Equal(t, "订单已创建", body.Message)
		assert.Equal(t, "s-1", body.Data["sagaId"])
	})

	t.Run("WriteError", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, WriteError(rec, NewError(CodeConflict)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body Response[any]
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.False(t, body.IsSuccess())
		assert.Equal(t, 40003, body.Code)
		assert.Nil(t, body.Data)
	})
}
