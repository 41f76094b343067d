package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	applog "tg-modbot/internal/logger"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const slowQueryThreshold = 200 * time.Millisecond

// CustomGormLogger sends gorm's output through the application logger
type CustomGormLogger struct {
	LogLevel      gormlogger.LogLevel
	SlowThreshold time.Duration
	// WithCaller appends the calling file:line to SQL traces
	WithCaller bool
}

// NewCustomGormLogger maps logger.level onto gorm's levels. SQL traces only
// show at DEBUG.
func NewCustomGormLogger(level string) gormlogger.Interface {
	l := &CustomGormLogger{
		LogLevel:      gormlogger.Warn,
		SlowThreshold: slowQueryThreshold,
		WithCaller:    true,
	}
	switch applog.ParseLevel(level) {
	case applog.LevelDebug:
		l.LogLevel = gormlogger.Info
	case applog.LevelError:
		l.LogLevel = gormlogger.Error
	}
	return l
}

func (l *CustomGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *CustomGormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		applog.Infof("gorm: "+msg, data...)
	}
}

func (l *CustomGormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		applog.Warningf("gorm: "+msg, data...)
	}
}

func (l *CustomGormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		applog.Errorf("gorm: "+msg, data...)
	}
}

// Trace logs failed statements, slow statements and, at DEBUG, every statement.
// Record-not-found is an expected lookup result and never logged as an error.
func (l *CustomGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold

	switch {
	case failed && l.LogLevel >= gormlogger.Error:
		sql, _ := fc()
		applog.Errorf("%s %s: %v", l.tracePrefix(elapsed), sql, err)
	case slow && l.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		applog.Warningf("%s slow query over %v (%d rows): %s", l.tracePrefix(elapsed), l.SlowThreshold, rows, sql)
	case l.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		applog.Debugf("%s %s (%d rows)", l.tracePrefix(elapsed), sql, rows)
	}
}

func (l *CustomGormLogger) tracePrefix(elapsed time.Duration) string {
	prefix := fmt.Sprintf("[%.3fms]", float64(elapsed.Nanoseconds())/1e6)
	if l.WithCaller {
		prefix += " [" + utils.FileWithLineNum() + "]"
	}
	return prefix
}
