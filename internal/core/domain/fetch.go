package domain

// FetchOptions selects what a read hydrates.
type FetchOptions uint8

const (
	// FetchComplete loads the complete variant's bytes.
	FetchComplete FetchOptions = 1 << iota
	// FetchPartial loads the partial variant's bytes.
	FetchPartial
	// FetchPartialIfNoComplete loads the partial variant's bytes only when there is no complete variant.
	FetchPartialIfNoComplete
	// FetchTempFile opens a temp file seeded with the partial variant's bytes.
	FetchTempFile
	// FetchTempFileIfNoComplete opens a seeded temp file only when there is no complete variant.
	FetchTempFileIfNoComplete
)

// Has reports whether all bits of o are set.
func (f FetchOptions) Has(o FetchOptions) bool {
	return f&o == o
}

// WantsComplete reports whether complete bytes should be hydrated for e.
func (f FetchOptions) WantsComplete(e Entry) bool {
	return f.Has(FetchComplete) && e.Complete != nil
}

// WantsPartial reports whether partial bytes should be hydrated for e.
func (f FetchOptions) WantsPartial(e Entry) bool {
	if e.Partial == nil {
		return false
	}
	return f.Has(FetchPartial) || (f.Has(FetchPartialIfNoComplete) && e.Complete == nil)
}

// WantsTempFile reports whether a temp file should be opened for e.
func (f FetchOptions) WantsTempFile(e Entry) bool {
	return f.Has(FetchTempFile) || (f.Has(FetchTempFileIfNoComplete) && e.Complete == nil)
}
