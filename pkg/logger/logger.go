package logger

import "sync"

// LoggerInstance is a logging backend. Every call carries a message and an
// even list of key/value pairs.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger fans every call out to all registered backends.
type Logger struct {
	instances []LoggerInstance
}

var (
	singletonLock sync.RWMutex
	singleton     *Logger
)

func getSingleton() *Logger {
	singletonLock.RLock()
	defer singletonLock.RUnlock()
	return singleton
}

// Init replaces the global logger. Calls made before Init are dropped.
func Init(instances ...LoggerInstance) {
	singletonLock.Lock()
	singleton = &Logger{instances: instances}
	singletonLock.Unlock()
}

func dispatch(fn func(LoggerInstance)) {
	l := getSingleton()
	if l == nil {
		return
	}
	for _, instance := range l.instances {
		fn(instance)
	}
}

// Log writes a message without a level.
func Log(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Log(message, keyvals...) })
}

// Info writes a message at INFO level.
func Info(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Info(message, keyvals...) })
}

// Warn writes a message at WARN level.
func Warn(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Warn(message, keyvals...) })
}

// Error writes a message at ERROR level.
func Error(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Error(message, keyvals...) })
}

// Debug writes a message at DEBUG level.
func Debug(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Debug(message, keyvals...) })
}

// Fatal writes a message at FATAL level. Backends are expected to exit.
func Fatal(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Fatal(message, keyvals...) })
}
