package ports

import "go.trai.ch/mediacache/internal/core/domain"

// DiagnosticSink receives non-fatal events raised by the disk caches.
//
//go:generate go run go.uber.org/mock/mockgen -source=diagnostics.go -destination=mocks/mock_diagnostics.go -package=mocks
type DiagnosticSink interface {
	Report(event domain.DiagnosticEvent)
}
