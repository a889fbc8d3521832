package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// DB GORM 连接.
type DB struct {
	db     *gorm.DB
	config *Config
	logger logger.Logger
}

// Open 打开数据库连接并配置连接池.
func Open(config *Config, log logger.Logger) (*DB, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if log == nil {
		return nil, ErrNilLogger
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	d, err := dialector(config.Driver, config.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         newGORMLoggerAdapter(log, config.SlowThreshold, config.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if config.EnableTracing {
		if err = db.Use(tracing.NewPlugin()); err != nil {
			return nil, errors.Join(ErrRegisterTracingPlugin, err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(config.Pool.MaxOpen)
	sqlDB.SetMaxIdleConns(config.Pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(config.Pool.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.Pool.MaxIdleTime)

	log.With(logger.String("driver", config.Driver)).Info("[Database] 连接已建立")
	return &DB{db: db, config: config, logger: log}, nil
}

// Gorm 返回底层 *gorm.DB.
func (d *DB) Gorm() *gorm.DB {
	return d.db
}

// WithContext 返回带 context 的 *gorm.DB，启用追踪时必须使用.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// AutoMigrate 在配置允许时迁移表结构.
func (d *DB) AutoMigrate(ctx context.Context, models ...any) error {
	if !d.config.AutoMigrate {
		d.logger.Debug("[Database] 自动迁移已禁用，跳过表结构创建")
		return nil
	}
	if err := d.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		d.logger.With(logger.Err(err)).Error("[Database] 自动迁移失败")
		return err
	}
	d.logger.Debug("[Database] 表结构迁移完成")
	return nil
}

// Ping 检查连接可用性.
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormLoggerAdapter 将 GORM 日志转发到 logger.Logger.
type gormLoggerAdapter struct {
	logger        logger.Logger
	slowThreshold time.Duration
	logLevel      gormlogger.LogLevel
}

func newGORMLoggerAdapter(log logger.Logger, slowThreshold time.Duration, level string) gormlogger.Interface {
	logLevel := gormlogger.Warn
	switch level {
	case "silent":
		logLevel = gormlogger.Silent
	case "error":
		logLevel = gormlogger.Error
	case "info":
		logLevel = gormlogger.Info
	}
	return &gormLoggerAdapter{logger: log, slowThreshold: slowThreshold, logLevel: logLevel}
}

func (l *gormLoggerAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.logLevel = level
	return &c
}

func (l *gormLoggerAdapter) Info(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Info {
		l.logger.WithContext(ctx).Infof(msg, data...)
	}
}

func (l *gormLoggerAdapter) Warn(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Warn {
		l.logger.WithContext(ctx).Warnf(msg, data...)
	}
}

func (l *gormLoggerAdapter) Error(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Error {
		l.logger.WithContext(ctx).Errorf(msg, data...)
	}
}

// Trace 记录 SQL 执行情况.
//
// 记录不存在与唯一约束冲突属于业务分支，不按错误记录.
func (l *gormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := l.logger.WithContext(ctx).With(
		logger.Duration("elapsed", elapsed),
		logger.Int64("rows", rows),
		logger.String("sql", sql),
	)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey):
		if l.logLevel >= gormlogger.Error {
			log.With(logger.Err(err)).Error("[Database] SQL执行失败")
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.logLevel >= gormlogger.Warn {
			log.With(logger.Duration("threshold", l.slowThreshold)).Warn("[Database] 慢查询")
		}
	case l.logLevel >= gormlogger.Info:
		log.Debug("[Database] SQL执行成功")
	}
}
