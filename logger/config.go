package logger

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// 输出目标，file 与 both 需要 LogDir.
const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputBoth    = "both"
)

// Config 日志配置.
type Config struct {
	ServiceName string `json:"service_name" toml:"service_name" yaml:"service_name" mapstructure:"service_name"`
	Level       string `json:"level" toml:"level" yaml:"level" mapstructure:"level"`
	Format      string `json:"format" toml:"format" yaml:"format" mapstructure:"format"`

	// 输出配置
	Output string `json:"output" toml:"output" yaml:"output" mapstructure:"output"`
	LogDir string `json:"log_dir" toml:"log_dir" yaml:"log_dir" mapstructure:"log_dir"`

	EnableCaller     bool `json:"enable_caller" toml:"enable_caller" yaml:"enable_caller" mapstructure:"enable_caller"`
	EnableStacktrace bool `json:"enable_stacktrace" toml:"enable_stacktrace" yaml:"enable_stacktrace" mapstructure:"enable_stacktrace"`
}

// DefaultConfig 返回默认配置.
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:  serviceName,
		Level:        LevelInfo,
		Format:       FormatJSON,
		Output:       OutputConsole,
		EnableCaller: true,
	}
}

// NewDevConfig 返回适合本地开发的配置.
func NewDevConfig(serviceName string) *Config {
	cfg := DefaultConfig(serviceName)
	cfg.Level = LevelDebug
	cfg.Format = FormatConsole
	return cfg
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Field: "config", Message: "config cannot be nil"}
	}
	switch c.Level {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return &ConfigError{Field: "level", Message: "invalid log level: " + c.Level}
	}
	switch c.Format {
	case "", FormatJSON, FormatConsole:
	default:
		return &ConfigError{Field: "format", Message: "invalid format: " + c.Format}
	}
	switch c.Output {
	case "", OutputConsole, OutputFile, OutputBoth:
	default:
		return &ConfigError{Field: "output", Message: "invalid output: " + c.Output}
	}
	if c.needsFileOutput() && c.LogDir == "" {
		return &ConfigError{Field: "log_dir", Message: "log_dir is required when output is file or both"}
	}
	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = LevelInfo
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == "" {
		c.Output = OutputConsole
	}
	if c.ServiceName == "" {
		c.ServiceName = "app"
	}
}

func (c *Config) needsFileOutput() bool {
	return c.Output == OutputFile || c.Output == OutputBoth
}

func (c *Config) needsConsoleOutput() bool {
	return c.Output == OutputConsole || c.Output == OutputBoth
}
