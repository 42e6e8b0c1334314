package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the context.
const (
	FieldRequestID   = "request_id"
	FieldProjectID   = "project_id"
	FieldOperation   = "operation"
	FieldComponent   = "component"
	FieldRemoteJobID = "remote_job_id"
	FieldAudioURL    = "audio_url"
)

// Metric fields, attached per entry for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
