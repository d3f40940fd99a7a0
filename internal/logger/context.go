package logger

import (
	"context"
	"sync/atomic"
)

type ctxKey struct{}

// fallback is served by FromContext when the context carries no logger.
var fallback atomic.Pointer[Logger]

func init() {
	fallback.Store(New(nil))
}

// GetDefault returns the process-wide logger.
func GetDefault() *Logger {
	return fallback.Load()
}

// SetDefaultLogger replaces the process-wide logger. nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		fallback.Store(l)
	}
}

// WithContext attaches l to ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or the default logger when
// there is none. ctx may be nil.
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return GetDefault()
	}
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return GetDefault()
}

// WithFields derives a context whose logger carries fields on every line.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// SetUploadID tags every line logged through ctx with the upload job.
func SetUploadID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, Fields{FieldUploadID: id})
}

// SetUserID tags every line logged through ctx with the acting user.
func SetUserID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, Fields{FieldUserID: id})
}

// SetComponent tags every line logged through ctx with a component name.
func SetComponent(ctx context.Context, name string) context.Context {
	return WithFields(ctx, Fields{FieldComponent: name})
}

// Field returns the value a context's logger carries under key, or nil.
func Field(ctx context.Context, key string) interface{} {
	return FromContext(ctx).Data[key]
}
