package listener

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/editor-bridge/accessor"
)

// LogAction is the action the engine uses to write diagnostics.
const LogAction = "Log"

// DebugLogger forwards engine diagnostics to a zap logger.
type DebugLogger struct {
	logger *zap.Logger
}

// NewDebugLogger creates a DebugLogger writing to l, or to the package
// logger when l is nil.
func NewDebugLogger(l *zap.Logger) *DebugLogger {
	if l == nil {
		l = Logger()
	}
	return &DebugLogger{logger: l.Named("engine")}
}

// Register exposes the Log action on a.
func (d *DebugLogger) Register(a *accessor.Accessor) {
	a.RegisterActionWithParameters(LogAction, d.Log)
}

// Log writes params as one debug entry.
func (d *DebugLogger) Log(params []string) {
	d.logger.Debug(strings.Join(params, " "))
}
