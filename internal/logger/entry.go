package logger

import (
	"context"
)

// Entry is one log line's metric fields (counts, sizes, durations). The
// tracing fields come from the context at the time the line is written.
//
//	logger.With(logger.Fields{logger.FieldCount: 4}).Info(ctx, "Published")
type Entry struct {
	fields Fields
}

// With starts an Entry.
func With(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// WithDuration returns a copy of e with duration_ms set.
func (e *Entry) WithDuration(ms int64) *Entry {
	fields := make(Fields, len(e.fields)+1)
	for k, v := range e.fields {
		fields[k] = v
	}
	fields[FieldDurationMs] = ms
	return &Entry{fields: fields}
}

func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Debugf(format, args...)
}

func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}
