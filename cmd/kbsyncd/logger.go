package main

import (
	"fmt"

	"github.com/helpcove/kbsync/internal/config"
	"github.com/helpcove/kbsync/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func buildLogger(debug bool) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	if debug {
		logConfig.Level.SetLevel(zap.DebugLevel)
	} else {
		logConfig.Level.SetLevel(zap.InfoLevel)
	}
	return zap.Must(logConfig.Build())
}

// setupTelemetry tees Info+ entries to Loki when a push URL is configured.
// The returned closer flushes the shipper; call it on the way out.
func setupTelemetry(cfg *config.Config, log *zap.Logger) (*zap.Logger, func(), error) {
	if cfg.Telemetry.LokiURL == "" {
		return log, func() {}, nil
	}

	w, err := telemetry.NewLokiWriter(cfg.Telemetry.LokiURL, "kbsyncd", log)
	if err != nil {
		return nil, nil, fmt.Errorf("loki writer: %w", err)
	}
	return telemetry.Attach(log, w, zapcore.InfoLevel), func() { _ = w.Close() }, nil
}
