package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Context fields, propagated through the call chain.
const (
	// FieldRunID is the sweep run ID (UUID)
	FieldRunID = "run_id"

	// FieldORI is the agency identifier being exported
	FieldORI = "ori"

	// FieldAttempt is the 1-based attempt number for an identifier
	FieldAttempt = "attempt"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Metric fields, attached per entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldStatus     = "status"
)
