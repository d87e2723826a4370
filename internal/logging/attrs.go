package logging

import (
	"log/slog"
	"time"
)

type Attr = slog.Attr

// Standardized attribute keys shared across components.
const (
	FieldComponent = "component"
	FieldImpact    = "impact"
	FieldRunID     = "run_id"
)

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic any form slog methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// WarnWithImpact logs a warning that always states the user-facing
// consequence alongside the cause.
func WarnWithImpact(logger *slog.Logger, msg, impact string, attrs ...Attr) {
	if logger == nil {
		return
	}
	hasImpact := false
	for _, attr := range attrs {
		if attr.Key == FieldImpact {
			hasImpact = true
			break
		}
	}
	if !hasImpact {
		attrs = append(attrs, String(FieldImpact, impact))
	}
	logger.Warn(msg, Args(attrs...)...)
}
