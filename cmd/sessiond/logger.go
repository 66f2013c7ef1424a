package main

import (
	"context"

	"github.com/samber/oops"
	"go.uber.org/zap"

	goSession "github.com/MrEthical07/goSession"
)

func newLogger(format string) (*zap.Logger, error) {
	switch format {
	case "", "json":
		return zap.NewProduction()
	case "console":
		return zap.NewDevelopment()
	default:
		return nil, oops.Code("CONFIG_INVALID").With("log_format", format).Errorf("unknown log format %q", format)
	}
}

// logError writes err with its oops code and context when present.
func logError(logger *zap.Logger, msg string, err error) {
	fields := []zap.Field{zap.Error(err)}
	if oopsErr, ok := oops.AsOops(err); ok {
		fields = append(fields, zap.Any("code", oopsErr.Code()))
		if hint := oopsErr.Hint(); hint != "" {
			fields = append(fields, zap.String("hint", hint))
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			fields = append(fields, zap.Any("context", ctx))
		}
	}
	logger.Error(msg, fields...)
}

// zapAuditSink writes audit events as structured log lines.
type zapAuditSink struct {
	logger *zap.Logger
}

func (s zapAuditSink) Emit(_ context.Context, event goSession.AuditEvent) {
	fields := []zap.Field{
		zap.Time("ts_event", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.Subject != "" {
		fields = append(fields, zap.String("subject", event.Subject))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error_code", event.Error))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	s.logger.Info("audit", fields...)
}
