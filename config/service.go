package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Tsukikage7/saga-orchestrator/cache"
	"github.com/Tsukikage7/saga-orchestrator/database"
	"github.com/Tsukikage7/saga-orchestrator/logger"
	"github.com/Tsukikage7/saga-orchestrator/messaging"
	"github.com/Tsukikage7/saga-orchestrator/metrics"
	"github.com/Tsukikage7/saga-orchestrator/storage/mongodb"
	"github.com/Tsukikage7/saga-orchestrator/tracing"
	"github.com/Tsukikage7/saga-orchestrator/transport/http/server"
)

// EnvPrefix 环境变量前缀，SAGA_HTTP_ADDR 覆盖 http.addr.
const EnvPrefix = "SAGA"

// 存储类型.
const (
	StoreMemory = "memory"
	StoreGorm   = "gorm"
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
)

// 锁类型.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// 参与方服务名.
const (
	ServicePayment   = "payment"
	ServiceInventory = "inventory"
	ServiceOrder     = "order"
)

// 服务配置错误.
var (
	ErrUnknownStore   = errors.New("config: 未知的存储类型")
	ErrUnknownLock    = errors.New("config: 未知的锁类型")
	ErrUnknownService = errors.New("config: 未知的参与方服务")
	ErrMissingSection = errors.New("config: 缺少依赖的配置段")
)

// Config 服务配置.
//
// database、mongo、redis 为可选段，只有被 saga.store、saga.lock、
// participant.store 或 participant.idempotency.store 引用时才需要填写.
type Config struct {
	App         AppConfig         `json:"app" yaml:"app" mapstructure:"app"`
	HTTP        server.Config     `json:"http" yaml:"http" mapstructure:"http"`
	Logger      logger.Config     `json:"logger" yaml:"logger" mapstructure:"logger"`
	Messaging   messaging.Config  `json:"messaging" yaml:"messaging" mapstructure:"messaging"`
	Database    *database.Config  `json:"database" yaml:"database" mapstructure:"database"`
	Mongo       *mongodb.Config   `json:"mongo" yaml:"mongo" mapstructure:"mongo"`
	Redis       *cache.Config     `json:"redis" yaml:"redis" mapstructure:"redis"`
	Metrics     metrics.Config    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Tracing     tracing.Config    `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
	Scheduler   SchedulerConfig   `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Saga        SagaConfig        `json:"saga" yaml:"saga" mapstructure:"saga"`
	Participant ParticipantConfig `json:"participant" yaml:"participant" mapstructure:"participant"`
}

// AppConfig 应用信息.
type AppConfig struct {
	Name            string        `json:"name" yaml:"name" mapstructure:"name"`
	Version         string        `json:"version" yaml:"version" mapstructure:"version"`
	GracefulTimeout time.Duration `json:"graceful_timeout" yaml:"graceful_timeout" mapstructure:"graceful_timeout"`
}

// SchedulerConfig 编排器维护任务，默认关闭.
type SchedulerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// SweepSchedule 超时步骤清扫的 cron 表达式（含秒）
	SweepSchedule string `json:"sweep_schedule" yaml:"sweep_schedule" mapstructure:"sweep_schedule"`
	// StepTimeout 步骤 IN_PROGRESS 超过该时长判定为失败
	StepTimeout     time.Duration `json:"step_timeout" yaml:"step_timeout" mapstructure:"step_timeout"`
	RecoverSchedule string        `json:"recover_schedule" yaml:"recover_schedule" mapstructure:"recover_schedule"`
	// RecoverGrace COMPENSATING 超过该时长重新执行补偿
	RecoverGrace time.Duration `json:"recover_grace" yaml:"recover_grace" mapstructure:"recover_grace"`
}

// SagaConfig 编排器配置.
type SagaConfig struct {
	Store string `json:"store" yaml:"store" mapstructure:"store"`
	Lock  string `json:"lock" yaml:"lock" mapstructure:"lock"`
	// LockTTL Redis 锁过期时间
	LockTTL           time.Duration `json:"lock_ttl" yaml:"lock_ttl" mapstructure:"lock_ttl"`
	PublishAttempts   uint          `json:"publish_attempts" yaml:"publish_attempts" mapstructure:"publish_attempts"`
	PublishRetryDelay time.Duration `json:"publish_retry_delay" yaml:"publish_retry_delay" mapstructure:"publish_retry_delay"`
}

// ParticipantConfig 参与方配置.
type ParticipantConfig struct {
	// Services 本进程运行的参与方，默认全部
	Services []string `json:"services" yaml:"services" mapstructure:"services"`
	Store    string   `json:"store" yaml:"store" mapstructure:"store"`
	// PaymentMaxAmount 模拟支付网关的单笔上限，0 表示不限
	PaymentMaxAmount float64 `json:"payment_max_amount" yaml:"payment_max_amount" mapstructure:"payment_max_amount"`
	// SeedInventory 启动时写入示例商品
	SeedInventory bool              `json:"seed_inventory" yaml:"seed_inventory" mapstructure:"seed_inventory"`
	Idempotency   IdempotencyConfig `json:"idempotency" yaml:"idempotency" mapstructure:"idempotency"`
}

// IdempotencyConfig 命令去重配置.
type IdempotencyConfig struct {
	// Store 为空时不去重
	Store     string        `json:"store" yaml:"store" mapstructure:"store"`
	ClaimTTL  time.Duration `json:"claim_ttl" yaml:"claim_ttl" mapstructure:"claim_ttl"`
	ResultTTL time.Duration `json:"result_ttl" yaml:"result_ttl" mapstructure:"result_ttl"`
}

// ApplyDefaults 填充默认值.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "saga-orchestrator"
	}
	if c.App.Version == "" {
		c.App.Version = "dev"
	}
	if c.App.GracefulTimeout <= 0 {
		c.App.GracefulTimeout = 30 * time.Second
	}
	if c.HTTP.Name == "" {
		c.HTTP.Name = c.App.Name
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":3000"
	}

	if c.Logger.ServiceName == "" {
		c.Logger.ServiceName = c.App.Name
	}
	c.Logger.ApplyDefaults()
	if c.Messaging.ClientID == "" {
		c.Messaging.ClientID = c.App.Name
	}
	if c.Database != nil {
		c.Database.ApplyDefaults()
	}
	if c.Mongo != nil {
		c.Mongo.ApplyDefaults()
	}
	if c.Redis != nil {
		c.Redis.ApplyDefaults()
	}
	c.Metrics.ApplyDefaults()

	s := &c.Scheduler
	if s.SweepSchedule == "" {
		s.SweepSchedule = "*/30 * * * * *"
	}
	if s.StepTimeout <= 0 {
		s.StepTimeout = 5 * time.Minute
	}
	if s.RecoverSchedule == "" {
		s.RecoverSchedule = "0 * * * * *"
	}
	if s.RecoverGrace <= 0 {
		s.RecoverGrace = 2 * time.Minute
	}

	if c.Saga.Store == "" {
		c.Saga.Store = StoreMemory
	}
	if c.Saga.Lock == "" {
		c.Saga.Lock = LockLocal
	}
	if c.Saga.LockTTL <= 0 {
		c.Saga.LockTTL = 30 * time.Second
	}

	p := &c.Participant
	if len(p.Services) == 0 {
		p.Services = []string{ServicePayment, ServiceInventory, ServiceOrder}
	}
	if p.Store == "" {
		p.Store = StoreMemory
	}
	if p.Idempotency.ClaimTTL <= 0 {
		p.Idempotency.ClaimTTL = time.Minute
	}
	if p.Idempotency.ResultTTL <= 0 {
		p.Idempotency.ResultTTL = 24 * time.Hour
	}
}

// Validate 校验配置及各段之间的依赖.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Messaging.Validate(); err != nil {
		return err
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}

	switch c.Saga.Store {
	case StoreMemory:
	case StoreGorm:
		if c.Database == nil {
			return fmt.Errorf("%w: saga.store=gorm 需要 database", ErrMissingSection)
		}
	case StoreMongo:
		if c.Mongo == nil {
			return fmt.Errorf("%w: saga.store=mongo 需要 mongo", ErrMissingSection)
		}
	default:
		return fmt.Errorf("%w: saga.store=%s", ErrUnknownStore, c.Saga.Store)
	}

	switch c.Saga.Lock {
	case LockLocal:
	case LockRedis:
		if c.Redis == nil {
			return fmt.Errorf("%w: saga.lock=redis 需要 redis", ErrMissingSection)
		}
	default:
		return fmt.Errorf("%w: saga.lock=%s", ErrUnknownLock, c.Saga.Lock)
	}

	p := c.Participant
	for _, svc := range p.Services {
		if !slices.Contains([]string{ServicePayment, ServiceInventory, ServiceOrder}, svc) {
			return fmt.Errorf("%w: %s", ErrUnknownService, svc)
		}
	}
	switch p.Store {
	case StoreMemory:
	case StoreGorm:
		if c.Database == nil {
			return fmt.Errorf("%w: participant.store=gorm 需要 database", ErrMissingSection)
		}
	default:
		return fmt.Errorf("%w: participant.store=%s", ErrUnknownStore, p.Store)
	}
	switch p.Idempotency.Store {
	case "", StoreMemory:
	case StoreRedis:
		if c.Redis == nil {
			return fmt.Errorf("%w: participant.idempotency.store=redis 需要 redis", ErrMissingSection)
		}
	default:
		return fmt.Errorf("%w: participant.idempotency.store=%s", ErrUnknownStore, p.Idempotency.Store)
	}

	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	}
	return nil
}
