package identifier

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mediacache/internal/core/ports"
)

// NodeID is the unique identifier for the identifier codec Graft node.
const NodeID graft.ID = "adapter.identifier_codec"

func init() {
	graft.Register(graft.Node[ports.IdentifierCodec]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.IdentifierCodec, error) {
			return New(), nil
		},
	})
}
