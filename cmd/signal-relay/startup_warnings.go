package main

import (
	"log/slog"
	"time"

	"github.com/streamglass/signal-relay/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && len(cfg.AllowedOrigins) == 0 {
		logger.Warn("startup security warning: ALLOWED_ORIGINS is unset while --mode=prod (only same-host browser origins can connect)",
			"warning_code", "allowed_origins_unset_in_prod",
			"mode", cfg.Mode,
		)
	}

	if cfg.MaxMessagesPerSecond <= 0 {
		logger.Warn("startup security warning: MAX_SIGNAL_MESSAGES_PER_SECOND is unset/0 (no per-connection message rate limit)",
			"warning_code", "signal_rate_limit_disabled",
			"max_signal_messages_per_second", cfg.MaxMessagesPerSecond,
			"mode", cfg.Mode,
		)
	}

	// Oversized signaling frames mean large per-message allocations driven by
	// untrusted peers.
	if cfg.MaxMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: MAX_SIGNAL_MESSAGE_BYTES is very large (increases per-message allocation risk)",
			"warning_code", "signal_message_limit_large",
			"max_signal_message_bytes", cfg.MaxMessageBytes,
			"mode", cfg.Mode,
		)
	}

	if cfg.LivenessInterval > 2*time.Minute {
		logger.Warn("startup security warning: SIGNAL_LIVENESS_INTERVAL is very large (dead connections occupy registry slots longer)",
			"warning_code", "liveness_interval_large",
			"liveness_interval", cfg.LivenessInterval,
			"mode", cfg.Mode,
		)
	}
}

func containsString(xs []string, v string) bool {
	for _, s := range xs {
		if s == v {
			return true
		}
	}
	return false
}
