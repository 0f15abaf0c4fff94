package metadata

import (
	"errors"
	"strings"

	"github.com/pkg/xattr"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.MetadataStore = (*XattrStore)(nil)

// XattrStore implements ports.MetadataStore with one extended attribute per field.
type XattrStore struct{}

// NewXattrStore creates a new XattrStore.
func NewXattrStore() *XattrStore {
	return &XattrStore{}
}

// Read decodes the context stored on the file at path.
func (s *XattrStore) Read(path string, kind domain.VariantKind) (domain.EntryContext, error) {
	attrs, err := readAttributes(path)
	if err != nil {
		return domain.EntryContext{}, errors.Join(domain.ErrCorruptMetadata, err)
	}
	return Decode(attrs, kind)
}

// Write encodes ctx onto the file at path, dropping attributes of ours that ctx no longer sets.
func (s *XattrStore) Write(path string, ctx domain.EntryContext) error {
	attrs, err := Encode(ctx)
	if err != nil {
		return err
	}

	existing, err := xattr.List(path)
	if err != nil {
		return errors.Join(domain.ErrIOFailure, zerr.With(zerr.Wrap(err, "failed to list attributes"), "path", path))
	}
	for _, name := range existing {
		if _, keep := attrs[name]; keep || !strings.HasPrefix(name, Namespace) {
			continue
		}
		if err := xattr.Remove(path, name); err != nil && !isNoAttr(err) {
			return errors.Join(domain.ErrIOFailure, zerr.With(zerr.Wrap(err, "failed to remove attribute"), "path", path))
		}
	}

	for name, value := range attrs {
		if err := xattr.Set(path, name, value); err != nil {
			return errors.Join(
				domain.ErrIOFailure,
				zerr.With(zerr.With(zerr.Wrap(err, "failed to set attribute"), "path", path), "attribute", name),
			)
		}
	}
	return nil
}

// Supported reports whether the filesystem holding dir accepts attributes in our namespace.
func Supported(path string) bool {
	const probe = Namespace + "probe"
	if err := xattr.Set(path, probe, []byte{'1'}); err != nil {
		return false
	}
	_ = xattr.Remove(path, probe)
	return true
}

func readAttributes(path string) (map[string][]byte, error) {
	names, err := xattr.List(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to list attributes"), "path", path)
	}

	attrs := make(map[string][]byte, len(names))
	for _, name := range names {
		if !strings.HasPrefix(name, Namespace) {
			continue
		}
		value, err := xattr.Get(path, name)
		if err != nil {
			if isNoAttr(err) {
				continue
			}
			return nil, zerr.With(zerr.With(zerr.Wrap(err, "failed to get attribute"), "path", path), "attribute", name)
		}
		attrs[name] = value
	}
	return attrs, nil
}

func isNoAttr(err error) bool {
	return errors.Is(err, xattr.ENOATTR)
}
