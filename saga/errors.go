package saga

import "errors"

// 预定义错误.
var (
	// ErrSagaNotFound Saga 不存在.
	ErrSagaNotFound = errors.New("saga: Saga 不存在")

	// ErrInvalidOrder 订单数据无效.
	ErrInvalidOrder = errors.New("saga: 订单数据无效")

	// ErrInvalidState 当前状态不允许该操作.
	ErrInvalidState = errors.New("saga: 当前状态不允许该操作")

	// ErrNoFailedStep 没有失败的步骤.
	ErrNoFailedStep = errors.New("saga: 没有失败的步骤")

	// ErrDuplicateSaga Saga 已存在.
	ErrDuplicateSaga = errors.New("saga: Saga 已存在")

	// ErrStepNotFound 步骤不存在.
	ErrStepNotFound = errors.New("saga: 步骤不存在")

	// ErrPublish 发送命令失败.
	ErrPublish = errors.New("saga: 发送命令失败")

	// ErrEncode 编码失败.
	ErrEncode = errors.New("saga: 编码失败")

	// ErrDecode 解码失败.
	ErrDecode = errors.New("saga: 解码失败")

	// ErrMissingResultID 成功回复缺少步骤结果 ID.
	ErrMissingResultID = errors.New("saga: 成功回复缺少结果 ID")

	// ErrNilStore 存储为空.
	ErrNilStore = errors.New("saga: 存储不能为空")

	// ErrNilProducer 生产者为空.
	ErrNilProducer = errors.New("saga: 生产者不能为空")
)
