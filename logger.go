package poisson

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/poisson/backend"
	"github.com/gogpu/poisson/internal/gpu"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for poisson and its sub-packages.
// By default, poisson produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by poisson:
//   - [slog.LevelDebug]: pipeline and drawlet creation, buffer sizes
//   - [slog.LevelInfo]: adapter selection, swapchain recreation, backend
//     lifecycle
//   - [slog.LevelWarn]: skipped frames (zero-area surface, out-of-date
//     swapchain), deferred release errors, resources destroyed after their
//     device
//   - [slog.LevelError]: device loss, refused config files
//
// Example:
//
//	poisson.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	gpu.SetLogger(l)
	backend.SetLogger(l)
}

// Logger returns the current logger used by poisson.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
