package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Option 加载选项.
type Option func(*loadOptions)

type loadOptions struct {
	envPrefix  string
	configType string
	defaults   map[string]any
}

// WithEnvPrefix 环境变量前缀. 前缀 SAGA 时 SAGA_HTTP_ADDR 覆盖 http.addr.
//
// 只有文件或 WithDefaults 中出现过的键才会被环境变量覆盖.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// WithDefaults 兜底值，键为点号路径，优先级低于文件与环境变量.
func WithDefaults(defaults map[string]any) Option {
	return func(o *loadOptions) {
		if o.defaults == nil {
			o.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// WithConfigType 文件扩展名无法识别格式时显式指定，如 "yaml".
func WithConfigType(configType string) Option {
	return func(o *loadOptions) { o.configType = configType }
}

// newViper 按选项创建 viper 实例，环境变量键中的点号替换为下划线.
func newViper(opts []Option) (*viper.Viper, *loadOptions) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	for key, value := range o.defaults {
		v.SetDefault(key, value)
	}
	if o.envPrefix != "" {
		v.SetEnvPrefix(o.envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, o
}
