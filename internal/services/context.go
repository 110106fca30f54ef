package services

import "context"

type contextKey string

const (
	batchKeyKey  contextKey = "batch_key"
	fileIDKey    contextKey = "file_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithBatchKey annotates context with the upload batch grouping key.
func WithBatchKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, batchKeyKey, key)
}

// BatchKeyFromContext extracts the batch grouping key if present.
func BatchKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithFileID annotates context with the chat platform file identifier.
func WithFileID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, fileIDKey, id)
}

// FileIDFromContext extracts the chat platform file identifier if present.
func FileIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(fileIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
