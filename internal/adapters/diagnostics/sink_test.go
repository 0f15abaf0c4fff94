package diagnostics_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/mediacache/internal/adapters/diagnostics"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestLoggingSink_OversizeEvicted(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(`images: dropped partial variant of "a" (3.0 MiB exceeds the 1.0 MiB limit)`)

	sink := diagnostics.NewLoggingSink(mockLogger)
	sink.Report(domain.DiagnosticEvent{
		Kind:       domain.DiagnosticOversizeEvicted,
		Cache:      "images",
		Identifier: "a",
		Variant:    domain.KindPartial,
		Bytes:      3 << 20,
		Limit:      1 << 20,
	})

	assert.Equal(t, 1, sink.Count(domain.DiagnosticOversizeEvicted))
	assert.Equal(t, 0, sink.Count(domain.DiagnosticBootstrapFailed))
}

func TestLoggingSink_BootstrapFailed(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.True(t, errors.Is(err, os.ErrPermission))
	})

	sink := diagnostics.NewLoggingSink(mockLogger)
	sink.Report(domain.DiagnosticEvent{
		Kind:  domain.DiagnosticBootstrapFailed,
		Cache: "images",
		Err:   os.ErrPermission,
	})

	assert.Equal(t, 1, sink.Count(domain.DiagnosticBootstrapFailed))
}
