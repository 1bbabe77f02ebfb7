package mskcreds

import "github.com/mongodb/grip"

// Logger is the logging capability used by the CredentialVault. Any
// grip.Journaler satisfies it.
type Logger interface {
	Debug(msg interface{})
	Info(msg interface{})
	Error(msg interface{})
}

// NewDefaultLogger returns a Logger that sends messages to the global grip
// logger.
func NewDefaultLogger() Logger {
	return defaultLogger{}
}

type defaultLogger struct{}

func (defaultLogger) Debug(msg interface{}) { grip.Debug(msg) }
func (defaultLogger) Info(msg interface{})  { grip.Info(msg) }
func (defaultLogger) Error(msg interface{}) { grip.Error(msg) }
