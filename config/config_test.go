package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/saga-orchestrator/messaging"
)

const sampleYAML = `
app:
  name: orchestrator-service
http:
  addr: ":3000"
messaging:
  type: kafka
  brokers:
    - localhost:9092
database:
  driver: sqlite
  dsn: "file::memory:"
saga:
  store: gorm
participant:
  services: [payment, inventory]
  payment_max_amount: 5000
scheduler:
  enabled: true
  step_timeout: 90s
`

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigTestSuite) write(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *ConfigTestSuite) TestLoad_ServiceConfig() {
	cfg, err := Load[Config](s.write("saga.yaml", sampleYAML), WithEnvPrefix(EnvPrefix))
	s.Require().NoError(err)

	s.Equal("orchestrator-service", cfg.App.Name)
	s.Equal("orchestrator-service", cfg.Logger.ServiceName)
	s.Equal([]string{"localhost:9092"}, cfg.Messaging.Brokers)
	s.Equal("orchestrator-service", cfg.Messaging.ClientID)
	s.Require().NotNil(cfg.Database)
	s.Equal("sqlite", cfg.Database.Driver)
	s.Nil(cfg.Mongo)
	s.Nil(cfg.Redis)

	s.Equal(StoreGorm, cfg.Saga.Store)
	s.Equal(LockLocal, cfg.Saga.Lock)
	s.Equal([]string{ServicePayment, ServiceInventory}, cfg.Participant.Services)
	s.Equal(5000.0, cfg.Participant.PaymentMaxAmount)
	s.Equal(StoreMemory, cfg.Participant.Store)

	s.True(cfg.Scheduler.Enabled)
	s.Equal(90*time.Second, cfg.Scheduler.StepTimeout)
	s.Equal("*/30 * * * * *", cfg.Scheduler.SweepSchedule)
	s.Equal("/metrics", cfg.Metrics.Path)
}

func (s *ConfigTestSuite) TestLoad_EnvOverride() {
	s.T().Setenv("SAGA_HTTP_ADDR", ":8088")
	s.T().Setenv("SAGA_SAGA_STORE", "memory")

	cfg, err := Load[Config](s.write("saga.yaml", sampleYAML), WithEnvPrefix(EnvPrefix))
	s.Require().NoError(err)
	s.Equal(":8088", cfg.HTTP.Addr)
	s.Equal(StoreMemory, cfg.Saga.Store)
}

func (s *ConfigTestSuite) TestLoad_JSON() {
	path := s.write("saga.json", `{"messaging": {"type": "memory"}, "http": {"addr": ":9000"}}`)

	cfg, err := Load[Config](path)
	s.Require().NoError(err)
	s.Equal(messaging.TypeMemory, cfg.Messaging.Type)
	s.Equal(":9000", cfg.HTTP.Addr)
	s.Equal(StoreMemory, cfg.Saga.Store)
	s.Len(cfg.Participant.Services, 3)
}

func (s *ConfigTestSuite) TestLoad_Errors() {
	_, err := Load[Config](filepath.Join(s.dir, "missing.yaml"))
	s.ErrorIs(err, ErrFileNotFound)

	_, err = Load[Config](s.write("bad.yaml", "app: [unclosed"))
	s.ErrorIs(err, ErrReadConfig)

	_, err = Load[Config](s.write("invalid.yaml", "messaging:\n  type: kafka\n"))
	s.ErrorIs(err, ErrValidation)
	s.ErrorIs(err, messaging.ErrNoBrokers)
}

func (s *ConfigTestSuite) TestMustLoad() {
	s.Panics(func() { MustLoad[Config](filepath.Join(s.dir, "missing.yaml")) })
}

func (s *ConfigTestSuite) TestLoadFromBytes_WithDefaults() {
	cfg, err := LoadFromBytes[Config]([]byte("messaging:\n  type: memory\n"), "yaml",
		WithDefaults(map[string]any{"http.addr": ":7000", "participant.seed_inventory": true}),
	)
	s.Require().NoError(err)
	s.Equal(":7000", cfg.HTTP.Addr)
	s.True(cfg.Participant.SeedInventory)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.Messaging.Type = messaging.TypeMemory
		return c
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"默认配置", func(*Config) {}, nil},
		{"gorm 存储缺少 database", func(c *Config) { c.Saga.Store = StoreGorm }, ErrMissingSection},
		{"mongo 存储缺少 mongo", func(c *Config) { c.Saga.Store = StoreMongo }, ErrMissingSection},
		{"未知存储", func(c *Config) { c.Saga.Store = "etcd" }, ErrUnknownStore},
		{"redis 锁缺少 redis", func(c *Config) { c.Saga.Lock = LockRedis }, ErrMissingSection},
		{"未知锁", func(c *Config) { c.Saga.Lock = "zookeeper" }, ErrUnknownLock},
		{"未知参与方", func(c *Config) { c.Participant.Services = []string{"shipping"} }, ErrUnknownService},
		{"参与方 gorm 存储缺少 database", func(c *Config) { c.Participant.Store = StoreGorm }, ErrMissingSection},
		{"redis 去重缺少 redis", func(c *Config) { c.Participant.Idempotency.Store = StoreRedis }, ErrMissingSection},
		{"未知去重存储", func(c *Config) { c.Participant.Idempotency.Store = "etcd" }, ErrUnknownStore},
		{"不支持的消息通道", func(c *Config) { c.Messaging.Type = "nats" }, messaging.ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			c.ApplyDefaults()

			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetConfigType(t *testing.T) {
	for file, want := range map[string]string{
		"saga.yaml": "yaml",
		"saga.YML":  "yaml",
		"saga.json": "json",
		"saga.toml": "toml",
		"saga.ini":  "",
	} {
		require.Equal(t, want, GetConfigType(file), file)
	}
}
