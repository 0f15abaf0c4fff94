// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/mediacache/internal/adapters/config"
	_ "go.trai.ch/mediacache/internal/adapters/diagnostics"
	_ "go.trai.ch/mediacache/internal/adapters/identifier"
	_ "go.trai.ch/mediacache/internal/adapters/logger"
	_ "go.trai.ch/mediacache/internal/adapters/metadata"
	// Register app nodes.
	_ "go.trai.ch/mediacache/internal/app"
)
