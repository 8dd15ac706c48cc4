package logger

import "context"

type contextKey string

const fieldsKey contextKey = "log_fields"

// Fields are added to every record logged with a context carrying them.
type Fields struct {
	Component string
	SessionID string
	EventType string
}

// WithFields merges fields into ctx; non-empty values win.
func WithFields(ctx context.Context, fields Fields) context.Context {
	merged := FieldsFrom(ctx)
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	if fields.SessionID != "" {
		merged.SessionID = fields.SessionID
	}
	if fields.EventType != "" {
		merged.EventType = fields.EventType
	}
	return context.WithValue(ctx, fieldsKey, merged)
}

// FieldsFrom returns the fields stored on ctx, or the zero value.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	if fields, ok := ctx.Value(fieldsKey).(Fields); ok {
		return fields
	}
	return Fields{}
}
