// Package logfields names the structured log and span attribute keys.
package logfields

const (
	// Identifiers

	Name      = "name"
	Operation = "operation"

	ProcessID   = "pid"
	MachineID   = "machine-id"
	InsuranceID = "insurance-id"

	// Paths and files

	File   = "file"
	Path   = "path"
	Root   = "root"
	Folder = "folder"
	Target = "target"

	// Virtualization

	Resource    = "resource"
	Disposition = "disposition"
	Redirected  = "redirected"

	// Shared components

	Component  = "component"
	Components = "components"
	CreatedAt  = "created-at"
	Holders    = "holders"

	// Common Misc

	Attempt = "attempt"
	Count   = "count"
	Failed  = "failed"

	// Time

	Duration  = "duration"
	EndTime   = "endTime"
	StartTime = "startTime"
	Timeout   = "timeout"

	// logging and tracing

	TraceID      = "traceID"
	SpanID       = "spanID"
	ParentSpanID = "parentSpanID"
	StatusCode   = "statusCode"
	Cause        = "cause"
)
