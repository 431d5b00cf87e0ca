// Package telemetry is a small structured logger used only at the boundary
// functions of the bundle cryptography core - key creation, author
// resolution, signature verification, payload key derivation - so an operator can
// trace what a call did without the core depending on any particular
// logging framework. It never logs secret material.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Level is a logging severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// Field is a single structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field  { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger emits structured entries scoped to a single component name, set
// once via Component and reused for the component's lifetime.
type Logger struct {
	component string
}

var (
	mu         sync.Mutex
	out        = os.Stderr
	minLevel   = Warn
	components = map[string]*Logger{}
)

// SetLevel adjusts the minimum level emitted by every component logger.
// The default, Warn, means Debug/Info calls made during normal operation
// produce no output; tests and operators raise it explicitly.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// Component returns the logger for name, creating it on first use.
func Component(name string) *Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := components[name]; ok {
		return l
	}
	l := &Logger{component: name}
	components[name] = l
	return l
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}
	entry := map[string]interface{}{
		"time":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"component": l.component,
		"message":   msg,
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	b, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(out, "{\"level\":\"error\",\"message\":\"telemetry marshal failed: %s\"}\n", err)
		return
	}
	fmt.Fprintln(out, string(b))
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(Debug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }
