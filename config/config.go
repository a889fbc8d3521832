// Package config 提供基于 viper 的配置加载功能.
package config

import (
	"path/filepath"
	"strings"
)

// Validatable 可验证的配置接口.
//
// 配置结构实现该接口后，Load 在解析完成后自动调用 Validate.
type Validatable interface {
	Validate() error
}

// Defaulter 可填充默认值的配置接口，在 Validate 之前调用.
type Defaulter interface {
	ApplyDefaults()
}

// GetConfigType 根据文件扩展名获取配置类型.
func GetConfigType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return ""
	}
}
