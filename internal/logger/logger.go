package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "talk-digest.log"

type Logger struct {
	*logrus.Logger
	fileLogger *logrus.Logger
	rotator    *lumberjack.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger *Logger
)

func init() {
	// 文件日志在 Setup 之前不落盘
	defaultLogger = &Logger{
		Logger:     newConsoleLogger(logrus.DebugLevel),
		fileLogger: newFileLogger(io.Discard, logrus.InfoLevel),
	}
}

func newConsoleLogger(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	l.SetOutput(os.Stdout)
	l.SetLevel(level)
	return l
}

func newFileLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{
		PrettyPrint:     false,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetOutput(w)
	l.SetLevel(level)
	return l
}

// Setup 根据配置启用文件日志，level 为空时使用 info
func Setup(dir, level string) error {
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("无效的日志级别 %q: %w", level, err)
		}
		lvl = parsed
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("无法创建日志目录: %w", err)
	}

	// 使用lumberjack进行日志轮转
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    10,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger.rotator != nil {
		_ = defaultLogger.rotator.Close()
	}
	defaultLogger = &Logger{
		Logger:     newConsoleLogger(lvl),
		fileLogger: newFileLogger(rotator, lvl),
		rotator:    rotator,
	}
	return nil
}

// SetOutput 替换控制台输出，便于测试捕获日志
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.Logger.SetOutput(w)
}

// Close 关闭日志文件
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger.rotator == nil {
		return nil
	}
	err := defaultLogger.rotator.Close()
	defaultLogger.rotator = nil
	defaultLogger.fileLogger.SetOutput(io.Discard)
	return err
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func Infof(format string, args ...any) {
	l := current()
	l.Logger.Infof(format, args...)
	l.fileLogger.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	l := current()
	l.Logger.Warnf(format, args...)
	l.fileLogger.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	l := current()
	l.Logger.Errorf(format, args...)
	l.fileLogger.Errorf(format, args...)
}

// Fatalf 先写文件日志，再由控制台日志退出进程
func Fatalf(format string, args ...any) {
	l := current()
	l.fileLogger.Errorf(format, args...)
	l.Logger.Fatalf(format, args...)
}

func Debugf(format string, args ...any) {
	l := current()
	l.Logger.Debugf(format, args...)
	l.fileLogger.Debugf(format, args...)
}
