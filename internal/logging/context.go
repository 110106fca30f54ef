package logging

import (
	"context"
	"log/slog"

	"transponster/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBatchKey identifies the upload batch (channel/thread) a line belongs to.
	FieldBatchKey = "batch_key"
	// FieldFileID is the chat platform file identifier.
	FieldFileID = "file_id"
	// FieldStage is the pipeline stage name.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if key, ok := services.BatchKeyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchKey, key))
	}
	if id, ok := services.FileIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldFileID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
