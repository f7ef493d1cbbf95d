package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context logger through a run.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldRunID identifies one enrichment or catalog run
	FieldRunID = "run_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldEntity is the entity kind being enriched (events, lineups, ...)
	FieldEntity = "entity"

	// FieldParentID is the store id of the parent record
	FieldParentID = "parent_id"

	// FieldBatch is the 1-based batch number within a run
	FieldBatch = "batch"

	// FieldCollection is the catalog collection being synced
	FieldCollection = "collection"
)

// Metric fields, attached per entry for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldRows is the number of rows written or read
	FieldRows = "rows"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
