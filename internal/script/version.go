package script

// Version constants for the script schema and engine.
const (
	// SchemaVersion is the only script_schema_version this engine accepts.
	SchemaVersion = "1.0"

	// EngineVersion is the vnengine runtime version recorded in session journals.
	EngineVersion = "0.1.0"
)
