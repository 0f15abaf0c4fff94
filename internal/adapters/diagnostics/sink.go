// Package diagnostics reports cache diagnostic events through the logger.
package diagnostics

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.DiagnosticSink = (*LoggingSink)(nil)

// LoggingSink logs every event and keeps a tally per kind.
type LoggingSink struct {
	logger ports.Logger

	mu     sync.Mutex
	counts map[domain.DiagnosticKind]int
}

// NewLoggingSink creates a sink that reports through logger.
func NewLoggingSink(logger ports.Logger) *LoggingSink {
	return &LoggingSink{
		logger: logger,
		counts: make(map[domain.DiagnosticKind]int),
	}
}

// Report implements ports.DiagnosticSink.
func (s *LoggingSink) Report(event domain.DiagnosticEvent) {
	s.mu.Lock()
	s.counts[event.Kind]++
	s.mu.Unlock()

	switch event.Kind {
	case domain.DiagnosticOversizeEvicted:
		s.logger.Warn(fmt.Sprintf(
			"%s: dropped %s variant of %q (%s exceeds the %s limit)",
			event.Cache, event.Variant, event.Identifier,
			humanize.IBytes(uint64(max(event.Bytes, 0))), humanize.IBytes(uint64(max(event.Limit, 0))),
		))
	case domain.DiagnosticBootstrapFailed:
		err := event.Err
		if err == nil {
			err = domain.ErrCacheUnavailable
		}
		s.logger.Error(zerr.With(zerr.Wrap(err, "cache bootstrap failed"), "cache", event.Cache))
	default:
		s.logger.Warn(fmt.Sprintf("%s: unknown diagnostic %d", event.Cache, event.Kind))
	}
}

// Count returns how many events of kind were reported.
func (s *LoggingSink) Count(kind domain.DiagnosticKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}
