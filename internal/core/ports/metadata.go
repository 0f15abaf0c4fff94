package ports

import "go.trai.ch/mediacache/internal/core/domain"

// MetadataStore persists an entry context alongside the file holding the variant's bytes.
//
// The metadata must travel with the file: renaming the file renames its
// metadata and deleting the file deletes it.
//
//go:generate go run go.uber.org/mock/mockgen -source=metadata.go -destination=mocks/mock_metadata.go -package=mocks
type MetadataStore interface {
	// Read decodes the context stored for the file at path.
	// Missing or undecodable metadata is reported as domain.ErrCorruptMetadata.
	Read(path string, kind domain.VariantKind) (domain.EntryContext, error)

	// Write stores ctx for the file at path.
	Write(path string, ctx domain.EntryContext) error
}
