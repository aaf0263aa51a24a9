package poisson

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/poisson/internal/gpu"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(nopHandler); !ok {
		t.Error("WithAttrs did not return a nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup did not return a nopHandler")
	}
}

// logRecord is one captured message.
type logRecord struct {
	level slog.Level
	msg   string
}

// captureHandler keeps every record it is handed.
type captureHandler struct {
	mu      *sync.Mutex
	records *[]logRecord
}

func newCaptureLogger(t *testing.T) captureHandler {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	h := captureHandler{mu: new(sync.Mutex), records: new([]logRecord)}
	SetLogger(slog.New(h))
	return h
}

func (captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, logRecord{r.Level, r.Message})
	return nil
}

func (h captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h captureHandler) WithGroup(string) slog.Handler      { return h }

// level returns the level msg was logged at.
func (h captureHandler) level(msg string) (slog.Level, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range *h.records {
		if r.msg == msg {
			return r.level, true
		}
	}
	return 0, false
}

func (h captureHandler) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(*h.records)
}

// expect fails unless msg was logged at want.
func (h captureHandler) expect(t *testing.T, msg string, want slog.Level) {
	t.Helper()
	got, ok := h.level(msg)
	switch {
	case !ok:
		t.Errorf("%q was not logged", msg)
	case got != want:
		t.Errorf("%q logged at %v, want %v", msg, got, want)
	}
}

func TestSetLoggerReachesSubpackages(t *testing.T) {
	logs := newCaptureLogger(t)

	b := newTestBackend(t)
	newTestPipeline[ColoredMesh](t, b)

	logs.expect(t, "backend: opened", slog.LevelDebug)
	logs.expect(t, "gpu: device opened", slog.LevelInfo)
	logs.expect(t, "gpu: pipeline compiled", slog.LevelDebug)
	logs.expect(t, "poisson: backend ready", slog.LevelInfo)
	logs.expect(t, "poisson: pipeline created", slog.LevelDebug)
}

func TestSetLoggerNilSilencesSubpackages(t *testing.T) {
	logs := newCaptureLogger(t)
	SetLogger(nil)

	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) left an enabled logger")
	}
	b := newTestBackend(t)
	newTestPipeline[ColoredMesh](t, b)
	renderFrames(t, b, 1)
	if n := logs.len(); n != 0 {
		t.Errorf("%d records reached a replaced logger", n)
	}
}

func TestSkippedFramesLogWarn(t *testing.T) {
	logs := newCaptureLogger(t)

	b := newTestBackend(t, WithSize(0, 0))
	renderFrames(t, b, 1)
	logs.expect(t, "poisson: frame skipped, zero-area surface", slog.LevelWarn)

	b.Resize(16, 16)
	renderFrames(t, b, 1)
	b.presenter.(*gpu.OffscreenPresenter).FailAcquire(ErrOutOfDate)
	renderFrames(t, b, 1)
	logs.expect(t, "poisson: frame skipped, swapchain out of date", slog.LevelWarn)
}

func TestDeviceLossLogsError(t *testing.T) {
	logs := newCaptureLogger(t)

	cp := &countingPresenter{presentErr: ErrDeviceLost}
	b := newTestBackend(t, WithPresenter(cp))
	if _, err := b.RenderFrame(context.Background()); err == nil {
		t.Fatal("RenderFrame succeeded on a lost device")
	}
	logs.expect(t, "poisson: device lost", slog.LevelError)

	for _, r := range *logs.records {
		if r.level == slog.LevelError && !strings.HasPrefix(r.msg, "poisson:") {
			t.Errorf("unexpected error record %q", r.msg)
		}
	}
}
