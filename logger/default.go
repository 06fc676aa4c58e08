package logger

import "sync/atomic"

// holder keeps the stored type stable for atomic.Value.
type holder struct{ Logger }

var defLogger atomic.Value

func init() {
	defLogger.Store(holder{NewSlog(InfoLevel, false)})
}

func current() Logger {
	return defLogger.Load().(holder).Logger //nolint:forcetypeassert
}

func Debug(msg string, keysAndValues ...any) {
	current().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	current().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	current().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	current().Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	current().Fatal(msg, keysAndValues...)
}

func SetLevel(level LogLevel) {
	current().SetLevel(level)
}

// SetDefault replaces the package level logger, e.g. to route output through an interactive console.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(holder{l})
}

func GetLogger() Logger {
	return current()
}

func With(keyValues ...any) Logger {
	return current().With(keyValues...)
}
