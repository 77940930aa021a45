package log

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
)

// bufferCapacity is the number of entries queued before the oldest are dropped.
const bufferCapacity = 1000

// Logger writes structured entries through an async Buffer.
type Logger struct {
	mu         sync.RWMutex
	level      Level
	buffer     *Buffer
	baseFields map[string]any
}

// New creates a logger emitting entries at level and above.
func New(level Level, transporters ...Transporter) *Logger {
	return &Logger{
		level:      level,
		buffer:     NewBuffer(bufferCapacity, transporters...),
		baseFields: make(map[string]any),
	}
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the minimum level.
func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// With returns a child logger sharing the buffer with extra base fields.
func (l *Logger) With(keysAndValues ...any) *Logger {
	l.mu.RLock()
	fields := make(map[string]any, len(l.baseFields)+len(keysAndValues)/2)
	for k, v := range l.baseFields {
		fields[k] = v
	}
	level := l.level
	l.mu.RUnlock()

	putPairs(fields, keysAndValues)
	return &Logger{level: level, buffer: l.buffer, baseFields: fields}
}

// Close flushes queued entries and closes the transporters.
func (l *Logger) Close() {
	l.buffer.Close()
}

// Dropped returns how many entries were lost to buffer overflow.
func (l *Logger) Dropped() int64 {
	return l.buffer.DroppedCount()
}

func (l *Logger) log(ctx context.Context, level Level, msg string, keysAndValues []any) {
	l.mu.RLock()
	if !l.level.Enables(level) {
		l.mu.RUnlock()
		return
	}
	entry := NewEntry(level, msg)
	for k, v := range l.baseFields {
		entry.Fields[k] = v
	}
	l.mu.RUnlock()

	entry.Caller = caller(3)
	if ctx != nil {
		entry.RequestID = RequestIDFromContext(ctx)
		entry.RunID = RunIDFromContext(ctx)
		for k, v := range FieldsFromContext(ctx) {
			entry.Fields[k] = v
		}
	}
	putPairs(entry.Fields, keysAndValues)

	l.buffer.Send(*entry)
}

// caller returns "file.go:line" for the frame skip levels up.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (l *Logger) Debug(msg string, keysAndValues ...any) { l.log(nil, Debug, msg, keysAndValues) }
func (l *Logger) Info(msg string, keysAndValues ...any)  { l.log(nil, Info, msg, keysAndValues) }
func (l *Logger) Warn(msg string, keysAndValues ...any)  { l.log(nil, Warn, msg, keysAndValues) }
func (l *Logger) Error(msg string, keysAndValues ...any) { l.log(nil, Error, msg, keysAndValues) }

// Fatal logs at Fatal level. Exiting is left to the caller.
func (l *Logger) Fatal(msg string, keysAndValues ...any) { l.log(nil, Fatal, msg, keysAndValues) }

func (l *Logger) DebugCtx(ctx context.Context, msg string, keysAndValues ...any) {
	l.log(ctx, Debug, msg, keysAndValues)
}

func (l *Logger) InfoCtx(ctx context.Context, msg string, keysAndValues ...any) {
	l.log(ctx, Info, msg, keysAndValues)
}

func (l *Logger) WarnCtx(ctx context.Context, msg string, keysAndValues ...any) {
	l.log(ctx, Warn, msg, keysAndValues)
}

func (l *Logger) ErrorCtx(ctx context.Context, msg string, keysAndValues ...any) {
	l.log(ctx, Error, msg, keysAndValues)
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger

	discardOnce sync.Once
	discard     *Logger
)

// SetDefault installs l as the process-wide logger. Nil restores the discard logger.
func SetDefault(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// Default returns the process-wide logger, or a logger that drops everything.
func Default() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	discardOnce.Do(func() {
		discard = &Logger{
			level:      Fatal + 1,
			buffer:     NewBuffer(1, discardTransporter{}),
			baseFields: map[string]any{},
		}
	})
	return discard
}

type discardTransporter struct{}

func (discardTransporter) Name() string      { return "discard" }
func (discardTransporter) Write(Entry) error { return nil }
func (discardTransporter) Close() error      { return nil }

func GlobalDebug(msg string, keysAndValues ...any) { Default().log(nil, Debug, msg, keysAndValues) }
func GlobalInfo(msg string, keysAndValues ...any)  { Default().log(nil, Info, msg, keysAndValues) }
func GlobalWarn(msg string, keysAndValues ...any)  { Default().log(nil, Warn, msg, keysAndValues) }
func GlobalError(msg string, keysAndValues ...any) { Default().log(nil, Error, msg, keysAndValues) }

func GlobalDebugCtx(ctx context.Context, msg string, keysAndValues ...any) {
	Default().log(ctx, Debug, msg, keysAndValues)
}

func GlobalInfoCtx(ctx context.Context, msg string, keysAndValues ...any) {
	Default().log(ctx, Info, msg, keysAndValues)
}

func GlobalWarnCtx(ctx context.Context, msg string, keysAndValues ...any) {
	Default().log(ctx, Warn, msg, keysAndValues)
}

func GlobalErrorCtx(ctx context.Context, msg string, keysAndValues ...any) {
	Default().log(ctx, Error, msg, keysAndValues)
}
