package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/mediacache/internal/adapters/config"      //nolint:depguard // Wired in app layer
	"go.trai.ch/mediacache/internal/adapters/diagnostics" //nolint:depguard // Wired in app layer
	"go.trai.ch/mediacache/internal/adapters/identifier"  //nolint:depguard // Wired in app layer
	"go.trai.ch/mediacache/internal/adapters/logger"      //nolint:depguard // Wired in app layer
	"go.trai.ch/mediacache/internal/adapters/metadata"    //nolint:depguard // Wired in app layer
	"go.trai.ch/mediacache/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			metadata.NodeID,
			identifier.NodeID,
			diagnostics.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.MetadataStore](ctx)
	if err != nil {
		return nil, err
	}

	codec, err := graft.Dep[ports.IdentifierCodec](ctx)
	if err != nil {
		return nil, err
	}

	sink, err := graft.Dep[ports.DiagnosticSink](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, log, store, codec, sink), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return NewComponents(app, log), nil
}
