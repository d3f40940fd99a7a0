package logger

import (
	"context"
	"time"
)

// Entry collects measurement fields for one log line, which is written
// through the logger of the context it is emitted with:
//
//	logger.With(logger.Fields{"failed": n}).WithCount(total).WithDuration(start).Info(ctx, "Upload job completed")
type Entry struct {
	fields Fields
}

// With starts an Entry. fields is copied.
func With(fields Fields) *Entry {
	e := &Entry{fields: make(Fields, len(fields)+2)}
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

func (e *Entry) set(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

// WithDuration records the milliseconds elapsed since start.
func (e *Entry) WithDuration(start time.Time) *Entry {
	return e.set(FieldDurationMs, time.Since(start).Milliseconds())
}

// WithCount records how many items the line is about.
func (e *Entry) WithCount(n int) *Entry {
	return e.set(FieldCount, n)
}

// WithRow records the 1-based data row number.
func (e *Entry) WithRow(number int) *Entry {
	return e.set(FieldRowNumber, number)
}

// Info writes the line at Info level.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}

// Warn writes the line at Warn level.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Warnf(format, args...)
}
