package messaging

import (
	"maps"
	"time"
)

// 通用消息头.
const (
	// HeaderTimestamp 消息发布时间，RFC3339Nano 格式.
	HeaderTimestamp = "timestamp"
	// HeaderEventType 消息事件类型，命令与回复使用命令名.
	HeaderEventType = "eventType"
)

// Message 消息结构.
//
// Key 和 Value 均为 []byte，序列化由调用方控制.
// Kafka 下 Key 决定分区，同一 Key 的消息保持顺序.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Header 返回指定消息头，不存在时返回空字符串.
func (m *Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// clone 复制消息，避免多个消费组共享同一份 Headers.
func (m *Message) clone() *Message {
	c := *m
	c.Headers = maps.Clone(m.Headers)
	return &c
}
