package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(noEnv, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("logLevel=%v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.ListenAddr != ":5000" {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, ":5000")
	}
	if cfg.LivenessInterval != DefaultLivenessInterval {
		t.Fatalf("livenessInterval=%v, want %v", cfg.LivenessInterval, DefaultLivenessInterval)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Fatalf("maxMessageBytes=%d, want %d", cfg.MaxMessageBytes, DefaultMaxMessageBytes)
	}
	if cfg.MaxMessagesPerSecond != DefaultMaxMessagesPerSecond {
		t.Fatalf("maxMessagesPerSecond=%d, want %d", cfg.MaxMessagesPerSecond, DefaultMaxMessagesPerSecond)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("expected no allowed origins, got %v", cfg.AllowedOrigins)
	}
}

func TestDefaultsProdWhenModeFlagSet(t *testing.T) {
	cfg, err := load(noEnv, []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("logLevel=%v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
}

func TestPortEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarPort: "8443"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8443" {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, ":8443")
	}
}

func TestListenAddrEnvWinsOverPort(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarPort:       "8443",
		envVarListenAddr: "127.0.0.1:9000",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, "127.0.0.1:9000")
	}
}

func TestInvalidPort(t *testing.T) {
	if _, err := load(lookupMap(map[string]string{envVarPort: "not-a-port"}), nil); err == nil {
		t.Fatalf("expected error for invalid PORT")
	}
}

func TestLivenessIntervalEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarLivenessInterval: "5s"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LivenessInterval != 5*time.Second {
		t.Fatalf("livenessInterval=%v, want 5s", cfg.LivenessInterval)
	}
}

func TestLivenessIntervalMustBePositive(t *testing.T) {
	if _, err := load(noEnv, []string{"--liveness-interval", "0s"}); err == nil {
		t.Fatalf("expected error for zero liveness interval")
	}
}

func TestMaxMessageBytesFlagOverride(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarMaxMessageBytes: "2048"}), []string{"--max-message-bytes", "4096"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxMessageBytes != 4096 {
		t.Fatalf("maxMessageBytes=%d, want 4096", cfg.MaxMessageBytes)
	}
}

func TestAllowedOriginsNormalized(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarAllowedOrigins: "HTTPS://Example.com:443, *",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://example.com" || cfg.AllowedOrigins[1] != "*" {
		t.Fatalf("allowedOrigins=%v", cfg.AllowedOrigins)
	}
}

func TestAllowedOriginsInvalid(t *testing.T) {
	_, err := load(lookupMap(map[string]string{envVarAllowedOrigins: "ftp://bad"}), nil)
	if err == nil || !strings.Contains(err.Error(), "invalid origin") {
		t.Fatalf("expected invalid origin error, got %v", err)
	}
}

func TestInvalidMode(t *testing.T) {
	if _, err := load(lookupMap(map[string]string{envVarMode: "staging"}), nil); err == nil {
		t.Fatalf("expected error for invalid mode")
	}
}

func TestNewLoggerRejectsUnknownFormat(t *testing.T) {
	if _, err := NewLogger(Config{LogFormat: "yaml"}); err == nil {
		t.Fatalf("expected error for unknown log format")
	}
}
