package metrics

// Config 指标监控配置.
type Config struct {
	// Path 指标暴露路径
	Path string `json:"path" yaml:"path" mapstructure:"path"`
	// Namespace 所有指标名的前缀
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

// ApplyDefaults 补全未设置的字段: 路径 /metrics，命名空间 saga.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = "saga"
	}
}
