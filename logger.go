package fluid

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for fluid and its devices.
// By default fluid produces no log output. Pass nil to restore the silent
// default. SetLogger is safe for concurrent use.
//
// Levels used:
//   - [slog.LevelDebug]: field (re)allocation, pass counts, resize decisions
//   - [slog.LevelInfo]: device selection and shutdown
//   - [slog.LevelWarn]: context loss, resource release errors
//
// Devices created after the call pick up the new logger; running solvers
// keep the logger they were created with.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Sub-packages (gpu/, cmd/) call it to
// share one configuration without import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(d any, l *slog.Logger) {
	if ls, ok := d.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}
