package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context logger through a call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldRunID is the pipeline run ID, equal to the ImportLog id
	FieldRunID = "run_id"

	// FieldOperation is the run kind: import, sync or remap
	FieldOperation = "operation"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the job source identifier
	FieldSource = "source"

	// FieldSourceID is the id of one record within its source
	FieldSourceID = "source_id"
)

// Metric fields, set per Entry for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldStatus     = "status"
	FieldAttempt    = "attempt"
	FieldURL        = "url"
)
