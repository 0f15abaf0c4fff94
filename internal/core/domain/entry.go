// Package domain contains the core types of the media disk cache.
package domain

import (
	"io"
	"time"
)

// VariantKind tags which payload state an EntryContext describes.
type VariantKind uint8

const (
	// KindComplete marks a fully downloaded artifact.
	KindComplete VariantKind = iota
	// KindPartial marks an artifact whose download stopped before the end.
	KindPartial
)

// String implements fmt.Stringer.
func (k VariantKind) String() string {
	switch k {
	case KindComplete:
		return "complete"
	case KindPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Dimensions are the pixel dimensions of an artifact.
type Dimensions struct {
	Width  float64
	Height float64
}

// Valid reports whether both sides are at least one pixel.
func (d Dimensions) Valid() bool {
	return d.Width >= 1 && d.Height >= 1
}

// Area returns the pixel area, used as the fidelity measure.
func (d Dimensions) Area() float64 {
	return d.Width * d.Height
}

// EntryContext describes one stored variant.
//
// It is a tagged union: LastModified and ExpectedContentLength are only
// meaningful when Kind is KindPartial and are zero otherwise.
type EntryContext struct {
	Kind                 VariantKind
	URL                  string
	TTL                  time.Duration
	LastAccess           time.Time
	UpdateExpiryOnAccess bool
	Dimensions           Dimensions
	Animated             bool
	TreatAsPlaceholder   bool
	ImageType            string

	// Partial only.
	LastModified          string
	ExpectedContentLength int64
}

// Expired reports whether the context's TTL has elapsed at now.
// A zero LastAccess never expires since there is nothing to measure from.
func (c EntryContext) Expired(now time.Time) bool {
	if c.LastAccess.IsZero() {
		return false
	}
	return now.Sub(c.LastAccess) > c.TTL
}

// AsKind returns a copy converted to the given kind, clearing partial-only
// fields when converting to KindComplete.
func (c EntryContext) AsKind(kind VariantKind) EntryContext {
	c.Kind = kind
	if kind == KindComplete {
		c.LastModified = ""
		c.ExpectedContentLength = 0
	}
	return c
}

// Variant is one payload state of an entry.
//
// Stored variants only carry Context and Size. Variants passed to Write carry
// exactly one payload source (Data, SourcePath or Container). Variants
// returned by Read carry Data when hydration was requested.
type Variant struct {
	Context EntryContext
	Size    int64

	Data       []byte
	SourcePath string
	Container  io.WriterTo
}

// HasPayload reports whether the variant supplies bytes to persist.
func (v *Variant) HasPayload() bool {
	return v != nil && (v.Data != nil || v.SourcePath != "" || v.Container != nil)
}

func (v *Variant) clone() *Variant {
	if v == nil {
		return nil
	}
	c := *v
	if v.Data != nil {
		c.Data = append([]byte(nil), v.Data...)
	}
	return &c
}

// stored strips payload fields, leaving what the manifest keeps.
func (v *Variant) stored() *Variant {
	if v == nil {
		return nil
	}
	return &Variant{Context: v.Context, Size: v.Size}
}

// Entry is the cache state of one logical identifier.
type Entry struct {
	Identifier     string
	SafeIdentifier string
	Complete       *Variant
	Partial        *Variant

	// TempFile is only set on entries returned by Read when a temp file was requested.
	TempFile TempFileHandle
}

// TempFileHandle is an open temp file handed out by a read.
// Finalize moves its bytes into the cache; Discard drops them.
type TempFileHandle interface {
	io.Writer
	Path() string
	Finalize(ctx EntryContext) error
	Discard() error
}

// Clone returns a deep copy so callers never share state with the cache.
func (e Entry) Clone() Entry {
	e.Complete = e.Complete.clone()
	e.Partial = e.Partial.clone()
	return e
}

// Stored returns a copy holding only contexts and sizes.
func (e Entry) Stored() Entry {
	return Entry{
		Identifier:     e.Identifier,
		SafeIdentifier: e.SafeIdentifier,
		Complete:       e.Complete.stored(),
		Partial:        e.Partial.stored(),
	}
}

// Empty reports whether the entry holds no variants.
func (e Entry) Empty() bool {
	return e.Complete == nil && e.Partial == nil
}

// Bytes returns the total byte cost of the entry's variants.
func (e Entry) Bytes() int64 {
	var n int64
	if e.Complete != nil {
		n += e.Complete.Size
	}
	if e.Partial != nil {
		n += e.Partial.Size
	}
	return n
}

// Count returns 1 for an entry holding any variant and 0 otherwise.
func (e Entry) Count() int64 {
	if e.Empty() {
		return 0
	}
	return 1
}

// LastAccess returns the most recent access time across variants.
func (e Entry) LastAccess() time.Time {
	var t time.Time
	if e.Complete != nil && e.Complete.Context.LastAccess.After(t) {
		t = e.Complete.Context.LastAccess
	}
	if e.Partial != nil && e.Partial.Context.LastAccess.After(t) {
		t = e.Partial.Context.LastAccess
	}
	return t
}

// Variant returns the variant of the given kind.
func (e Entry) Variant(kind VariantKind) *Variant {
	switch kind {
	case KindComplete:
		return e.Complete
	case KindPartial:
		return e.Partial
	default:
		return nil
	}
}

// SetVariant replaces the variant of the given kind.
func (e *Entry) SetVariant(kind VariantKind, v *Variant) {
	switch kind {
	case KindComplete:
		e.Complete = v
	case KindPartial:
		e.Partial = v
	}
}

// PartialRedundant reports whether the entry holds a partial that does not
// exceed the complete variant's fidelity and must therefore be dropped.
func (e Entry) PartialRedundant() bool {
	if e.Complete == nil || e.Partial == nil {
		return false
	}
	return e.Partial.Context.Dimensions.Area() <= e.Complete.Context.Dimensions.Area()
}
