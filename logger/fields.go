package logger

import "time"

// Field 日志字段.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Time(key string, value time.Time) Field { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Err 错误字段，键固定为 error，err 为 nil 时值为 nil.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// 以下字段在编排器与参与方之间保持同名，便于按 Saga 聚合日志.

// SagaID 键 sagaId.
func SagaID(id string) Field { return String("sagaId", id) }

// OrderID 键 orderId.
func OrderID(id string) Field { return String("orderId", id) }

// Step 键 step，值为步骤名，如 PROCESS_PAYMENT.
func Step(name string) Field { return String("step", name) }

// Topic 键 topic.
func Topic(name string) Field { return String("topic", name) }
