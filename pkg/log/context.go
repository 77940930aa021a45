package log

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	runIDKey
	fieldsKey
)

// WithRequestID stores the HTTP request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id, or "" for a nil ctx.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRunID tags every entry logged with ctx as belonging to one cleaning run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run id, or "" for a nil ctx.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithFields merges key/value pairs into the fields carried by ctx.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	fields := make(map[string]any)
	for k, v := range FieldsFromContext(ctx) {
		fields[k] = v
	}
	putPairs(fields, keysAndValues)
	return context.WithValue(ctx, fieldsKey, fields)
}

// FieldsFromContext returns the fields carried by ctx, or nil.
func FieldsFromContext(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey).(map[string]any)
	return fields
}

// putPairs copies alternating key/value arguments into dst.
// Non-string keys and a trailing odd key are dropped.
func putPairs(dst map[string]any, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			dst[key] = keysAndValues[i+1]
		}
	}
}
