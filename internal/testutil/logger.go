package testutil

import (
	"sync"

	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
)

// RecordingLogger is an implementation of mskcreds.Logger that keeps every
// logged message in memory so tests can inspect what was logged.
type RecordingLogger struct {
	mu     sync.Mutex
	debugs []message.Composer
	infos  []message.Composer
	errors []message.Composer
}

// Debug records a debug message.
func (l *RecordingLogger) Debug(msg interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, message.ConvertToComposer(level.Debug, msg))
}

// Info records an info message.
func (l *RecordingLogger) Info(msg interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, message.ConvertToComposer(level.Info, msg))
}

// Error records an error message.
func (l *RecordingLogger) Error(msg interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, message.ConvertToComposer(level.Error, msg))
}

// Debugs returns the rendered debug messages.
func (l *RecordingLogger) Debugs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return render(l.debugs)
}

// Infos returns the rendered info messages.
func (l *RecordingLogger) Infos() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return render(l.infos)
}

// Errors returns the rendered error messages.
func (l *RecordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return render(l.errors)
}

func render(msgs []message.Composer) []string {
	rendered := make([]string, 0, len(msgs))
	for _, m := range msgs {
		rendered = append(rendered, m.String())
	}
	return rendered
}
