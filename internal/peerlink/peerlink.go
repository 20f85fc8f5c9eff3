// Package peerlink builds the pion WebRTC API used by the Go peers that
// negotiate through the relay: the e2e streamer and viewer binaries and the
// integration tests. The relay itself never terminates a peer connection;
// everything here lives on the client side of the signaling protocol.
package peerlink

import (
	"fmt"
	"log/slog"

	"github.com/pion/logging"
	"github.com/pion/transport/v4"
	"github.com/pion/webrtc/v4"
)

// Options configures API construction. The zero value is usable.
type Options struct {
	// Logger receives pion's internal ICE/DTLS/SCTP logging. Nil discards it.
	Logger *slog.Logger

	// Net overrides the network stack, e.g. a vnet.Net in tests. Nil uses
	// the host network.
	Net transport.Net
}

// NewAPI returns a pion API with default codecs registered.
func NewAPI(opts Options) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	if opts.Logger != nil {
		se.LoggerFactory = NewLoggerFactory(opts.Logger)
	}
	if opts.Net != nil {
		se.SetNet(opts.Net)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	return webrtc.NewAPI(
		webrtc.WithSettingEngine(se),
		webrtc.WithMediaEngine(mediaEngine),
	), nil
}

// NewLoggerFactory bridges pion's logging to slog. Each pion scope becomes
// a "scope" attribute; pion's trace level folds into debug.
func NewLoggerFactory(logger *slog.Logger) logging.LoggerFactory {
	return &slogLoggerFactory{logger: logger}
}

type slogLoggerFactory struct {
	logger *slog.Logger
}

func (f *slogLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &slogLeveledLogger{log: f.logger.With("scope", scope)}
}

type slogLeveledLogger struct {
	log *slog.Logger
}

func (l *slogLeveledLogger) Trace(msg string)                  { l.log.Debug(msg) }
func (l *slogLeveledLogger) Tracef(format string, args ...any) { l.log.Debug(sprintf(format, args)) }
func (l *slogLeveledLogger) Debug(msg string)                  { l.log.Debug(msg) }
func (l *slogLeveledLogger) Debugf(format string, args ...any) { l.log.Debug(sprintf(format, args)) }
func (l *slogLeveledLogger) Info(msg string)                   { l.log.Info(msg) }
func (l *slogLeveledLogger) Infof(format string, args ...any)  { l.log.Info(sprintf(format, args)) }
func (l *slogLeveledLogger) Warn(msg string)                   { l.log.Warn(msg) }
func (l *slogLeveledLogger) Warnf(format string, args ...any)  { l.log.Warn(sprintf(format, args)) }
func (l *slogLeveledLogger) Error(msg string)                  { l.log.Error(msg) }
func (l *slogLeveledLogger) Errorf(format string, args ...any) { l.log.Error(sprintf(format, args)) }

func sprintf(format string, args []any) string {
	return fmt.Sprintf(format, args...)
}
