package diagnostics

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mediacache/internal/adapters/logger"
	"go.trai.ch/mediacache/internal/core/ports"
)

// NodeID is the unique identifier for the diagnostic sink Graft node.
const NodeID graft.ID = "adapter.diagnostics"

func init() {
	graft.Register(graft.Node[ports.DiagnosticSink]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.DiagnosticSink, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewLoggingSink(log), nil
		},
	})
}
