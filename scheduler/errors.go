package scheduler

import "errors"

// 预定义错误.
var (
	ErrJobNameEmpty    = errors.New("scheduler: 任务名称不能为空")
	ErrScheduleEmpty   = errors.New("scheduler: 调度表达式不能为空")
	ErrHandlerNil      = errors.New("scheduler: 任务处理函数不能为空")
	ErrScheduleInvalid = errors.New("scheduler: 调度表达式无效")
	ErrSchedulerClosed = errors.New("scheduler: 调度器已关闭")
	ErrJobNotFound     = errors.New("scheduler: 任务不存在")
	ErrJobExists       = errors.New("scheduler: 任务已存在")
	ErrLockerRequired  = errors.New("scheduler: 分布式任务需要配置 Locker")
)
