package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a logger at debug level.
// It implements PipelineHooks, CacheHooks and HTTPHooks.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks that log through l.
func NewLogHooks(l *log.Logger) *LogHooks {
	return &LogHooks{logger: l.WithPrefix("trace")}
}

// Register installs h for all event categories.
func (h *LogHooks) Register() {
	SetPipelineHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) OnPageStart(_ context.Context, domain string) {
	h.logger.Debug("page start", "domain", domain)
}

func (h *LogHooks) OnPageComplete(_ context.Context, domain string, d time.Duration, err error) {
	h.done("page done", err, "domain", domain, "duration", d)
}

func (h *LogHooks) OnCaptureComplete(_ context.Context, kind string, d time.Duration, err error) {
	h.done("capture done", err, "kind", kind, "duration", d)
}

func (h *LogHooks) OnRenderStart(_ context.Context, artifact string) {
	h.logger.Debug("render start", "artifact", artifact)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, artifact string, d time.Duration, err error) {
	h.done("render done", err, "artifact", artifact, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

func (h *LogHooks) done(msg string, err error, kv ...any) {
	if err != nil {
		kv = append(kv, "err", err)
	}
	h.logger.Debug(msg, kv...)
}
