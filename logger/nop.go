package logger

import (
	"go.uber.org/zap/zapcore"
)

// NewNop 返回丢弃所有输出的 logger.
func NewNop() Logger {
	return NewWithCore(zapcore.NewNopCore())
}
