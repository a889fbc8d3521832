package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type ZapLoggerTestSuite struct {
	suite.Suite
	tempDir string
}

func (s *ZapLoggerTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
}

func TestZapLoggerSuite(t *testing.T) {
	suite.Run(t, new(ZapLoggerTestSuite))
}

func (s *ZapLoggerTestSuite) TestNewLogger_Console() {
	log, err := NewLogger(&Config{Level: LevelDebug, Format: FormatConsole, Output: OutputConsole})
	s.Require().NoError(err)
	s.NotNil(log)
	s.NoError(log.Close())
}

func (s *ZapLoggerTestSuite) TestNewLogger_FileOutput() {
	cfg := &Config{ServiceName: "orchestrator", Output: OutputFile, LogDir: s.tempDir}
	log, err := NewLogger(cfg)
	s.Require().NoError(err)

	log.With(String("sagaId", "s-1")).Info("[Saga] 启动")
	s.Require().NoError(log.Close())

	data, err := os.ReadFile(filepath.Join(s.tempDir, "orchestrator.log"))
	s.Require().NoError(err)
	s.Contains(string(data), `"sagaId":"s-1"`)
	s.Contains(string(data), `"service":"orchestrator"`)
}

func (s *ZapLoggerTestSuite) TestNewLogger_InvalidConfig() {
	cases := []struct {
		name  string
		cfg   *Config
		field string
	}{
		{"nil", nil, "config"},
		{"level", &Config{Level: "verbose"}, "level"},
		{"format", &Config{Format: "xml"}, "format"},
		{"output", &Config{Output: "syslog"}, "output"},
		{"log_dir", &Config{Output: OutputFile}, "log_dir"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := NewLogger(tc.cfg)
			var cfgErr *ConfigError
			s.Require().ErrorAs(err, &cfgErr)
			s.Equal(tc.field, cfgErr.Field)
		})
	}
}

func TestWithContext_TraceFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core)

	ctx := ContextWithTraceID(context.Background(), "trace-1")
	ctx = ContextWithSpanID(ctx, "span-1")
	log.WithContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "trace-1", fields["traceId"])
	assert.Equal(t, "span-1", fields["spanId"])
}

func TestWithContext_NoTrace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core)

	log.WithContext(context.Background()).Info("plain")

	require.Equal(t, 1, logs.Len())
	assert.Empty(t, logs.All()[0].Context)
}

func TestToZapField(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core)

	log.With(
		String("s", "v"),
		Int("i", 3),
		Float64("f", 1.5),
		Bool("b", true),
		Duration("d", time.Second),
		Err(errors.New("boom")),
		Any("items", []string{"a", "b"}),
	).Warn("fields")

	require.Equal(t, 1, logs.Len())
	m := logs.All()[0].ContextMap()
	assert.Equal(t, "v", m["s"])
	assert.EqualValues(t, 3, m["i"])
	assert.Equal(t, 1.5, m["f"])
	assert.Equal(t, true, m["b"])
	assert.Equal(t, time.Second, m["d"])
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, []string{"a", "b"}, m["items"])
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.With(String("k", "v")).Error("discarded")
	assert.NoError(t, log.Close())
}

func TestSagaFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	NewWithCore(core).With(
		SagaID("saga-1"),
		OrderID("order-1"),
		Step("PROCESS_PAYMENT"),
		Topic("orchestrator.saga"),
	).Info("步骤成功")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "saga-1", fields["sagaId"])
	assert.Equal(t, "order-1", fields["orderId"])
	assert.Equal(t, "PROCESS_PAYMENT", fields["step"])
	assert.Equal(t, "orchestrator.saga", fields["topic"])
}
