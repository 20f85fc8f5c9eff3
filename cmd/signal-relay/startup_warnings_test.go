package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/streamglass/signal-relay/internal/config"
)

type recordedLog struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recordingHandler struct {
	mu      *sync.Mutex
	records *[]recordedLog
	attrs   []slog.Attr
	groups  []string
}

func newRecordingLogger() (*slog.Logger, func() []recordedLog) {
	mu := &sync.Mutex{}
	records := &[]recordedLog{}
	h := &recordingHandler{mu: mu, records: records}
	logger := slog.New(h)
	return logger, func() []recordedLog {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedLog, len(*records))
		copy(out, *records)
		return out
	}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := recordedLog{
		level: r.Level,
		msg:   r.Message,
		attrs: map[string]any{},
	}
	for _, a := range h.attrs {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	nh.attrs = append(nh.attrs, attrs...)
	return nh
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *recordingHandler) clone() *recordingHandler {
	cp := &recordingHandler{
		mu:      h.mu,
		records: h.records,
	}
	if len(h.attrs) > 0 {
		cp.attrs = append([]slog.Attr(nil), h.attrs...)
	}
	if len(h.groups) > 0 {
		cp.groups = append([]string(nil), h.groups...)
	}
	return cp
}

func (h *recordingHandler) key(k string) string {
	if len(h.groups) == 0 {
		return k
	}
	prefix := h.groups[0]
	for _, g := range h.groups[1:] {
		prefix += "." + g
	}
	return prefix + "." + k
}

func warningCodes(records []recordedLog) map[string]bool {
	codes := map[string]bool{}
	for _, r := range records {
		if r.level != slog.LevelWarn {
			continue
		}
		if code, ok := r.attrs["warning_code"].(string); ok {
			codes[code] = true
		}
	}
	return codes
}

func TestStartupSecurityWarnings_AllowedOriginsWildcard(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:                 config.ModeDev,
		AllowedOrigins:       []string{"*"},
		MaxMessagesPerSecond: 50,
		MaxMessageBytes:      1 << 20,
	})

	if !warningCodes(records())["allowed_origins_wildcard"] {
		t.Fatalf("expected warning_code=allowed_origins_wildcard, got %#v", records())
	}
}

func TestStartupSecurityWarnings_ProdWithoutOrigins(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:                 config.ModeProd,
		MaxMessagesPerSecond: 50,
		MaxMessageBytes:      1 << 20,
	})

	if !warningCodes(records())["allowed_origins_unset_in_prod"] {
		t.Fatalf("expected warning_code=allowed_origins_unset_in_prod, got %#v", records())
	}
}

func TestStartupSecurityWarnings_RateLimitDisabled(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:            config.ModeDev,
		MaxMessageBytes: 1 << 20,
	})

	if !warningCodes(records())["signal_rate_limit_disabled"] {
		t.Fatalf("expected warning_code=signal_rate_limit_disabled, got %#v", records())
	}
}

func TestStartupSecurityWarnings_LargeLimits(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:                 config.ModeProd,
		AllowedOrigins:       []string{"https://app.example.com"},
		MaxMessagesPerSecond: 50,
		MaxMessageBytes:      16 << 20,
		LivenessInterval:     10 * time.Minute,
	})

	codes := warningCodes(records())
	if !codes["signal_message_limit_large"] {
		t.Fatalf("expected warning_code=signal_message_limit_large, got %#v", records())
	}
	if !codes["liveness_interval_large"] {
		t.Fatalf("expected warning_code=liveness_interval_large, got %#v", records())
	}
}

func TestStartupSecurityWarnings_QuietWhenConfigured(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:                 config.ModeProd,
		AllowedOrigins:       []string{"https://app.example.com"},
		MaxMessagesPerSecond: 50,
		MaxMessageBytes:      1 << 20,
		LivenessInterval:     30 * time.Second,
	})

	if codes := warningCodes(records()); len(codes) != 0 {
		t.Fatalf("unexpected warnings: %#v", codes)
	}
}
