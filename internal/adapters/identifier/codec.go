// Package identifier maps raw cache keys to filesystem-safe file names.
package identifier

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.trai.ch/mediacache/internal/core/ports"
)

const (
	// maxEscapedLen keeps escaped names, plus the partial suffix, under common file name limits.
	maxEscapedLen = 200

	// hashedPrefix marks safe identifiers that cannot be reversed.
	hashedPrefix = "~"

	upperHex = "0123456789ABCDEF"
)

var _ ports.IdentifierCodec = (*Codec)(nil)

// Codec converts between raw and safe identifiers.
type Codec struct{}

// New creates a new Codec.
func New() *Codec {
	return &Codec{}
}

// ToSafe returns the file name for raw. The result is stable across runs.
func (c *Codec) ToSafe(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if isUnreserved(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[ch>>4])
		b.WriteByte(upperHex[ch&0x0F])
		if b.Len() > maxEscapedLen {
			return hashed(raw)
		}
	}
	if b.Len() == 0 || b.Len() > maxEscapedLen {
		return hashed(raw)
	}
	return b.String()
}

// FromSafe recovers the raw identifier from a safe one.
// It reports false when safe is a hashed token or is malformed.
func (c *Codec) FromSafe(safe string) (string, bool) {
	if safe == "" || strings.HasPrefix(safe, hashedPrefix) {
		return "", false
	}
	var b strings.Builder
	b.Grow(len(safe))
	for i := 0; i < len(safe); i++ {
		ch := safe[i]
		switch {
		case ch == '%':
			if i+2 >= len(safe) {
				return "", false
			}
			hi, ok1 := unhex(safe[i+1])
			lo, ok2 := unhex(safe[i+2])
			if !ok1 || !ok2 {
				return "", false
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
		case isUnreserved(ch):
			b.WriteByte(ch)
		default:
			return "", false
		}
	}
	return b.String(), true
}

func hashed(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hashedPrefix + hex.EncodeToString(sum[:])
}

func isUnreserved(ch byte) bool {
	return ch >= 'a' && ch <= 'z' ||
		ch >= 'A' && ch <= 'Z' ||
		ch >= '0' && ch <= '9' ||
		ch == '-' || ch == '_'
}

func unhex(ch byte) (byte, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', true
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, true
	default:
		return 0, false
	}
}
