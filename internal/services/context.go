package services

import "context"

type contextKey string

const (
	watchIDKey   contextKey = "watch_id"
	recordIDKey  contextKey = "record_id"
	batchIDKey   contextKey = "batch_id"
	requestIDKey contextKey = "request_id"
)

// WithWatchID annotates context with the watched folder configuration identifier.
func WithWatchID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, watchIDKey, id)
}

// WatchIDFromContext extracts the watched folder identifier if present.
func WatchIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, watchIDKey)
}

// WithRecordID annotates context with an organized file record identifier.
func WithRecordID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, recordIDKey, id)
}

// RecordIDFromContext extracts the organized file record identifier if present.
func RecordIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, recordIDKey)
}

// WithBatchID annotates context with a batch operation identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext returns the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
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

func int64Value(ctx context.Context, key contextKey) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	switch val := ctx.Value(key).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
