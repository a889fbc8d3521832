// Package database 打开 GORM 连接，供 Saga 存储与参与方存储共用.
//
// 支持 MySQL、PostgreSQL 与 SQLite. 连接默认开启错误翻译，
// 唯一约束冲突统一表现为 gorm.ErrDuplicatedKey，存储层据此识别重复写入.
package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// 驱动名，大小写不敏感.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrNilConfig             = errors.New("database: 配置为空")
	ErrNilLogger             = errors.New("database: 日志记录器为空")
	ErrEmptyDriver           = errors.New("database: 驱动类型为空")
	ErrEmptyDSN              = errors.New("database: 连接字符串为空")
	ErrUnsupportedDriver     = errors.New("database: 不支持的驱动类型")
	ErrRegisterTracingPlugin = errors.New("database: 注册追踪插件失败")
)

// dialects 驱动名到 Dialector 构造函数，postgresql 与 sqlite3 为别名.
var dialects = map[string]func(dsn string) gorm.Dialector{
	DriverMySQL:    mysql.Open,
	DriverPostgres: postgres.Open,
	"postgresql":   postgres.Open,
	DriverSQLite:   sqlite.Open,
	"sqlite3":      sqlite.Open,
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	open, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	return open(dsn), nil
}

// Config 数据库配置.
type Config struct {
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN    string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`

	// AutoMigrate 为 true 时启动前创建 sagas、payments 等表
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate" mapstructure:"auto_migrate"`

	Pool PoolConfig `json:"pool" yaml:"pool" mapstructure:"pool"`

	// SlowThreshold 超过该耗时的 SQL 以 warn 级别记录，默认 200ms
	SlowThreshold time.Duration `json:"slow_threshold" yaml:"slow_threshold" mapstructure:"slow_threshold"`
	// LogLevel GORM 日志级别: silent, error, warn, info
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	EnableTracing bool `json:"enable_tracing" yaml:"enable_tracing" mapstructure:"enable_tracing"`
}

// PoolConfig 连接池.
type PoolConfig struct {
	MaxOpen     int           `json:"max_open" yaml:"max_open" mapstructure:"max_open"`
	MaxIdle     int           `json:"max_idle" yaml:"max_idle" mapstructure:"max_idle"`
	MaxLifetime time.Duration `json:"max_lifetime" yaml:"max_lifetime" mapstructure:"max_lifetime"`
	MaxIdleTime time.Duration `json:"max_idle_time" yaml:"max_idle_time" mapstructure:"max_idle_time"`
}

// Validate 检查驱动与 DSN.
func (c *Config) Validate() error {
	switch {
	case c.Driver == "":
		return ErrEmptyDriver
	case c.DSN == "":
		return ErrEmptyDSN
	}
	if _, ok := dialects[strings.ToLower(c.Driver)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Driver)
	}
	return nil
}

// ApplyDefaults 补全日志与连接池参数.
func (c *Config) ApplyDefaults() {
	setDefault(&c.SlowThreshold, 200*time.Millisecond)
	setDefault(&c.LogLevel, "warn")
	setDefault(&c.Pool.MaxOpen, 50)
	setDefault(&c.Pool.MaxIdle, 10)
	setDefault(&c.Pool.MaxLifetime, time.Hour)
	setDefault(&c.Pool.MaxIdleTime, 10*time.Minute)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
