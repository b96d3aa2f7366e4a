package infra

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"

	"github.com/taole4114/2.-Script-YTB/internal/logger"
)

// GormZapLogger GORM 日志适配器（输出到 Zap，附带请求上下文字段）
type GormZapLogger struct {
	ZapLogger                 *zap.Logger
	LogLevel                  gormLogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// LogMode 设置日志级别
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

// Info 日志
func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		logger.FromContext(ctx, l.ZapLogger).Sugar().Infof(msg, data...)
	}
}

// Warn 日志
func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		logger.FromContext(ctx, l.ZapLogger).Sugar().Warnf(msg, data...)
	}
}

// Error 日志
func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		logger.FromContext(ctx, l.ZapLogger).Sugar().Errorf(msg, data...)
	}
}

// Trace SQL 执行日志
// kv_entries 的值是凭证快照，只记录 SQL 模板长度，不输出参数
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := logger.FromContext(ctx, l.ZapLogger)
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int("sql_len", len(sql)),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && (!errors.Is(err, gormLogger.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		log.Error("SQL 执行错误", append(fields, zap.Error(err))...)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold:
		log.Warn("SQL 慢查询", fields...)
	case l.LogLevel >= gormLogger.Info:
		log.Debug("SQL 执行", fields...)
	}
}
