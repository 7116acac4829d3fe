// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package logging builds the root slog.Handler every component logs through.
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Format selects the encoding backend.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatZap  Format = "zap"
)

// Config is the logging section of the service config.
type Config struct {
	Level  slog.Level `config:"level"`
	Format Format     `config:"format"`

	// RedactKeys are attribute keys whose values are masked,
	// in addition to DefaultRedactKeys.
	RedactKeys []string `config:"redact_keys"`
}

// UnknownFormatError is returned for a Format with no backend.
type UnknownFormatError struct {
	Format Format
}

func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown log format: %q", e.Format)
}

// Validate implements the validation hook used at startup.
func (cfg Config) Validate() error {
	switch cfg.Format {
	case "", FormatJSON, FormatText, FormatZap:
		return nil
	default:
		return UnknownFormatError{Format: cfg.Format}
	}
}

// NewHandler builds the encoding backend selected by cfg and wraps it so
// records are enriched from their context and sensitive values are masked.
func NewHandler(cfg Config, w io.Writer) (slog.Handler, error) {
	var h slog.Handler
	switch cfg.Format {
	case "", FormatJSON:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	case FormatText:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	case FormatZap:
		h = newZapHandler(cfg.Level, w)
	default:
		return nil, UnknownFormatError{Format: cfg.Format}
	}

	keys := append(append([]string{}, DefaultRedactKeys...), cfg.RedactKeys...)
	return NewContextHandler(NewRedactHandler(h, keys...)), nil
}

func newZapHandler(lvl slog.Level, w io.Writer) slog.Handler {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(zapLevel(lvl)),
	)
	return zapslog.NewHandler(core)
}

func zapLevel(lvl slog.Level) zapcore.Level {
	switch {
	case lvl >= slog.LevelError:
		return zapcore.ErrorLevel
	case lvl >= slog.LevelWarn:
		return zapcore.WarnLevel
	case lvl >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
