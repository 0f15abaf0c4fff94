package domain

// DiagnosticKind classifies a diagnostic event.
type DiagnosticKind uint8

const (
	// DiagnosticOversizeEvicted is raised when a variant exceeds the per-entry size cap.
	DiagnosticOversizeEvicted DiagnosticKind = iota
	// DiagnosticBootstrapFailed is raised when a cache directory cannot be scanned.
	DiagnosticBootstrapFailed
)

// DiagnosticEvent is a non-fatal condition surfaced for observability.
type DiagnosticEvent struct {
	Kind       DiagnosticKind
	Cache      string
	Identifier string
	Variant    VariantKind
	Bytes      int64
	Limit      int64
	Err        error
}
