package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
)

// Standard component names
const (
	ComponentApp     = "app"
	ComponentEngine  = "engine"
	ComponentStorage = "storage"
	ComponentLocal   = "localstore"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCLI     = "cli"
)
