// Package tracing 初始化 OpenTelemetry 链路追踪，并提供 HTTP 服务端中间件.
//
// 消息通道的生产/消费 span 由 messaging 包通过全局 TracerProvider 创建，
// 追踪上下文随消息头传播.
package tracing

import "errors"

// 预定义错误.
var (
	ErrNilConfig        = errors.New("tracing: 配置为空")
	ErrEmptyServiceName = errors.New("tracing: 服务名称为空")
	ErrEmptyEndpoint    = errors.New("tracing: OTLP 端点为空")
	ErrCreateExporter   = errors.New("tracing: 创建 OTLP 导出器失败")
	ErrCreateResource   = errors.New("tracing: 创建资源失败")
)

// Config 链路追踪配置.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// Endpoint OTLP HTTP 端点，可带 http:// 或 https:// 前缀
	Endpoint string            `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Headers  map[string]string `json:"headers" yaml:"headers" mapstructure:"headers"`
	// SamplingRate 采样率 (0, 1]，超出范围按 1 处理
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" mapstructure:"sampling_rate"`
}

// Validate 校验配置，未启用时不检查端点.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Enabled && c.Endpoint == "" {
		return ErrEmptyEndpoint
	}
	return nil
}
