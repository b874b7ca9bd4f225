package logger

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Hook func(entry map[string]any)

// Logger writes one JSON object per line. A nil *Logger discards everything.
type Logger struct {
	mu    sync.Mutex
	z     *zap.Logger
	level zap.AtomicLevel
	hooks []Hook
}

func New(level string) *Logger {
	return newWithWriter(level, os.Stdout)
}

// Nop returns a logger that drops all entries but still runs hooks.
func Nop() *Logger {
	return &Logger{z: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

func newWithWriter(level string, out io.Writer) *Logger {
	atom := zap.NewAtomicLevelAt(parseLevel(level))
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(out), atom)
	return &Logger{z: zap.New(core), level: atom}
}

func (l *Logger) Debug(msg string, fields map[string]any) {
	l.log(zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.log(zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	l.log(zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	l.log(zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) AddHook(h Hook) {
	if l == nil || h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

func (l *Logger) SetLevel(level string) {
	if l == nil {
		return
	}
	l.level.SetLevel(parseLevel(level))
}

func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}

func (l *Logger) log(level zapcore.Level, msg string, fields map[string]any) {
	if l == nil || !l.level.Enabled(level) {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	zfields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zfields = append(zfields, zap.Any(k, fields[k]))
	}
	if ce := l.z.Check(level, msg); ce != nil {
		ce.Write(zfields...)
	}

	l.mu.Lock()
	hooks := append([]Hook(nil), l.hooks...)
	l.mu.Unlock()
	if len(hooks) == 0 {
		return
	}
	entry := map[string]any{
		"ts":    time.Now().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	for _, h := range hooks {
		h(entry)
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
