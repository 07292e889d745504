package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized = errors.New("log object is not initialized yet")
	ErrLogBufferFull     = errors.New("log buffer is full, entry dropped")
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

type RatesLogger struct {
	mu          sync.RWMutex
	entries     chan logEntry
	handle      *os.File
	wg          sync.WaitGroup
	initialized bool
	zapLogger   *zap.Logger
}

type logEntry struct {
	level int
	msg   string
}

type LoggerOptions struct {
	Dir      string
	FileName string
	Level    string // error|warn|info|debug
	Rewrite  bool
	Console  bool
}

func (l *RatesLogger) Init(opts LoggerOptions) error {
	if err := EnsureFolder(opts.Dir); err != nil {
		return err
	}

	flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if opts.Rewrite {
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}

	handle, err := os.OpenFile(filepath.Join(opts.Dir, opts.FileName), flags, 0666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		handle.Close()
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.handle = handle
	l.zapLogger = newZapLogger(handle, level, opts.Console)
	l.entries = make(chan logEntry, LOG_BUFFER_SIZE)

	l.wg.Add(1)
	go l.writer()

	l.initialized = true
	return nil
}

func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

func newZapLogger(handle *os.File, level zapcore.Level, console bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(handle), level),
	}
	if console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}
	return zap.New(zapcore.NewTee(cores...))
}

func (l *RatesLogger) writer() {
	defer l.wg.Done()
	for entry := range l.entries {
		switch entry.level {
		case LOG_LEVEL_ERROR:
			l.zapLogger.Error(entry.msg)
		case LOG_LEVEL_WARN:
			l.zapLogger.Warn(entry.msg)
		case LOG_LEVEL_DEBUG:
			l.zapLogger.Debug(entry.msg)
		default:
			l.zapLogger.Info(entry.msg)
		}
	}
	l.zapLogger.Sync()
}

// LogEvent queues a message. A leading int argument selects the level.
func (l *RatesLogger) LogEvent(v ...interface{}) error {
	if l == nil {
		return ErrLogNotInitialized
	}

	entry := buildEntry(v)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.initialized {
		return ErrLogNotInitialized
	}

	select {
	case l.entries <- entry:
		return nil
	default:
		return ErrLogBufferFull
	}
}

func buildEntry(v []interface{}) logEntry {
	entry := logEntry{level: LOG_LEVEL_INFO}
	if len(v) == 0 {
		return entry
	}

	if level, ok := v[0].(int); ok && level >= LOG_LEVEL_ERROR && level <= LOG_LEVEL_DEBUG && len(v) > 1 {
		entry.level = level
		v = v[1:]
	}

	parts := make([]string, 0, len(v))
	for _, arg := range v {
		parts = append(parts, fmt.Sprint(arg))
	}
	entry.msg = strings.Join(parts, " ")
	return entry
}

func (l *RatesLogger) DeInit() {
	if l == nil {
		return
	}

	l.mu.Lock()
	if !l.initialized {
		l.mu.Unlock()
		return
	}
	l.initialized = false
	close(l.entries)
	l.mu.Unlock()

	l.wg.Wait()
	l.handle.Close()
}

func EnsureFolder(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("create folder %s: %w", path, err)
		}
	}
	return nil
}
