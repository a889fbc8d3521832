package cache

import "time"

// Config 缓存配置.
type Config struct {
	Type         string        `json:"type" yaml:"type" toml:"type" mapstructure:"type"`
	Addr         string        `json:"addr" yaml:"addr" toml:"addr" mapstructure:"addr"`
	Password     string        `json:"password" yaml:"password" toml:"password" mapstructure:"password"`
	DB           int           `json:"db" yaml:"db" toml:"db" mapstructure:"db"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" toml:"pool_size" mapstructure:"pool_size"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout" mapstructure:"write_timeout"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries" toml:"max_retries" mapstructure:"max_retries"`

	// 内存缓存专用
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" toml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// NewMemoryConfig 返回内存缓存配置.
func NewMemoryConfig() *Config {
	return &Config{Type: TypeMemory, CleanupInterval: time.Minute}
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	switch c.Type {
	case "", TypeRedis:
		if c.Addr == "" {
			return ErrEmptyAddr
		}
	case TypeMemory:
	default:
		return ErrUnsupported
	}
	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeRedis
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
}
