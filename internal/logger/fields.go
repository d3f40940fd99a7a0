package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context through the call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldUploadID is the bulk upload job ID
	FieldUploadID = "upload_id"

	// FieldRecordType is the record type of the rows being processed
	FieldRecordType = "record_type"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldUserID is the acting user
	FieldUserID = "user_id"
)

// Metric fields, attached per entry for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldRowNumber is the 1-based data row a message refers to
	FieldRowNumber = "row_number"
)
