package logger

// Standard field names for consistent structured logging across promptloom.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Files and paths
	FieldFile   = "file"
	FieldBackup = "backup"

	// Domain
	FieldSubprompt = "subprompt"
	FieldFolder    = "folder"
	FieldName      = "name"
)
