package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"tg-modbot/internal/config"
)

// Level is the minimum severity that gets written
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// ParseLevel maps the config spelling to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarning
	case "ERROR", "FATAL":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel changes the minimum level at runtime
func SetLevel(l Level) {
	currentLevel.Store(int32(l))
}

func enabled(l Level) bool {
	return Level(currentLevel.Load()) <= l
}

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// createMultiWriter creates a writer that outputs to both stdout and log file
func createMultiWriter(rotatingLogger io.Writer) io.Writer {
	return io.MultiWriter(os.Stdout, rotatingLogger)
}

// Setup configures logging to output to both stdout and a rotating log file
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := createLogFilePath(logDir, "tg-modbot")
	rotatingLogger := createRotatingLogger(logFilePath, cfg)
	multiWriter := createMultiWriter(rotatingLogger)

	// Set standard logger output to the multi-writer
	log.SetOutput(multiWriter)

	// Set log flags to include date, time, and file information
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	SetLevel(ParseLevel(cfg.Logger.Level))

	log.Printf("Logging initialized: writing to %s (level %s)", logFilePath, cfg.Logger.Level)
	return nil
}

// calldepth 3 points log.Lshortfile at the caller of the exported helper
func output(l Level, tag, msg string) {
	if !enabled(l) {
		return
	}
	_ = log.Output(3, "["+tag+"] "+msg)
}

func Debugf(format string, args ...interface{}) {
	output(LevelDebug, "DEBUG", fmt.Sprintf(format, args...))
}

func Info(args ...interface{}) {
	output(LevelInfo, "INFO", fmt.Sprint(args...))
}

func Infof(format string, args ...interface{}) {
	output(LevelInfo, "INFO", fmt.Sprintf(format, args...))
}

func Warning(args ...interface{}) {
	output(LevelWarning, "WARNING", fmt.Sprint(args...))
}

func Warningf(format string, args ...interface{}) {
	output(LevelWarning, "WARNING", fmt.Sprintf(format, args...))
}

func Error(args ...interface{}) {
	output(LevelError, "ERROR", fmt.Sprint(args...))
}

func Errorf(format string, args ...interface{}) {
	output(LevelError, "ERROR", fmt.Sprintf(format, args...))
}

// Fatalf logs regardless of level and exits
func Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, "[FATAL] "+fmt.Sprintf(format, args...))
	os.Exit(1)
}
