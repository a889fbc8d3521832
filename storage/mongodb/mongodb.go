// Package mongodb 提供 MongoDB 连接封装.
//
// 示例:
//
//	client, _ := mongodb.Connect(ctx, &mongodb.Config{
//	    URI:      "mongodb://localhost:27017",
//	    Database: "saga",
//	}, log)
//	defer client.Close(ctx)
//
//	store := saga.NewMongoStore(client.Collection("sagas"))
package mongodb

import (
	"errors"
	"time"
)

// 预定义错误.
var (
	ErrNilConfig     = errors.New("mongodb: 配置为空")
	ErrNilLogger     = errors.New("mongodb: 日志记录器为空")
	ErrEmptyURI      = errors.New("mongodb: URI 为空")
	ErrEmptyDatabase = errors.New("mongodb: 数据库名为空")
)

// Config MongoDB 配置.
type Config struct {
	URI      string `json:"uri" yaml:"uri" mapstructure:"uri"`
	Database string `json:"database" yaml:"database" mapstructure:"database"`
	// Collection Saga 集合名，默认 sagas
	Collection             string        `json:"collection" yaml:"collection" mapstructure:"collection"`
	ConnectTimeout         time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
	ServerSelectionTimeout time.Duration `json:"server_selection_timeout" yaml:"server_selection_timeout" mapstructure:"server_selection_timeout"`
	MaxPoolSize            uint64        `json:"max_pool_size" yaml:"max_pool_size" mapstructure:"max_pool_size"`
	MinPoolSize            uint64        `json:"min_pool_size" yaml:"min_pool_size" mapstructure:"min_pool_size"`
	MaxConnIdleTime        time.Duration `json:"max_conn_idle_time" yaml:"max_conn_idle_time" mapstructure:"max_conn_idle_time"`
	ReplicaSet             string        `json:"replica_set" yaml:"replica_set" mapstructure:"replica_set"`
	Direct                 bool          `json:"direct" yaml:"direct" mapstructure:"direct"`
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c.URI == "" {
		return ErrEmptyURI
	}
	if c.Database == "" {
		return ErrEmptyDatabase
	}
	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "sagas"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ServerSelectionTimeout == 0 {
		c.ServerSelectionTimeout = 5 * time.Second
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 100
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 10 * time.Minute
	}
}
