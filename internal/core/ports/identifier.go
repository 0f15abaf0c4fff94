package ports

// IdentifierCodec maps raw cache keys to the file names used on disk.
//
//go:generate go run go.uber.org/mock/mockgen -source=identifier.go -destination=mocks/mock_identifier.go -package=mocks
type IdentifierCodec interface {
	// ToSafe returns a stable, filesystem-legal name for raw.
	ToSafe(raw string) string

	// FromSafe recovers the raw key from a safe name when the name encodes it.
	FromSafe(safe string) (string, bool)
}
