// Package metadata encodes entry contexts as named file attributes.
package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/zerr"
)

// Namespace prefixes every attribute written by the codec.
const Namespace = "user.mediacache."

// Attribute names.
const (
	AttrURL          = Namespace + "url"
	AttrLastAccess   = Namespace + "access"
	AttrTTL          = Namespace + "ttl"
	AttrTouch        = Namespace + "touch"
	AttrWidth        = Namespace + "w"
	AttrHeight       = Namespace + "h"
	AttrAnimated     = Namespace + "anim"
	AttrPlaceholder  = Namespace + "placeholder"
	AttrImageType    = Namespace + "type"
	AttrLastModified = Namespace + "lmd"
	AttrContentLen   = Namespace + "cl"
)

// absentMarker stands in for a missing last-modified token.
const absentMarker = "-"

// Encode serializes ctx into an attribute map.
func Encode(ctx domain.EntryContext) (map[string][]byte, error) {
	if ctx.URL == "" {
		return nil, zerr.Wrap(domain.ErrMissingURL, "failed to encode metadata")
	}

	attrs := map[string][]byte{
		AttrURL:        []byte(ctx.URL),
		AttrLastAccess: []byte(formatTime(ctx.LastAccess)),
		AttrTTL:        []byte(formatTTL(ctx.TTL)),
		AttrTouch:      formatBool(ctx.UpdateExpiryOnAccess),
		AttrWidth:      []byte(strconv.FormatFloat(ctx.Dimensions.Width, 'g', -1, 64)),
		AttrHeight:     []byte(strconv.FormatFloat(ctx.Dimensions.Height, 'g', -1, 64)),
		AttrAnimated:   formatBool(ctx.Animated),
	}
	if ctx.TreatAsPlaceholder {
		attrs[AttrPlaceholder] = formatBool(true)
	}
	if ctx.ImageType != "" {
		attrs[AttrImageType] = []byte(ctx.ImageType)
	}

	switch ctx.Kind {
	case domain.KindPartial:
		lmd := ctx.LastModified
		if lmd == "" {
			lmd = absentMarker
		}
		attrs[AttrLastModified] = []byte(lmd)
		attrs[AttrContentLen] = []byte(strconv.FormatInt(ctx.ExpectedContentLength, 10))
	case domain.KindComplete:
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidInput, "unknown variant kind"), "kind", ctx.Kind)
	}

	return attrs, nil
}

// Decode parses an attribute map written by Encode.
// URL, last access and TTL are required; any decode failure is reported as
// domain.ErrCorruptMetadata.
func Decode(attrs map[string][]byte, kind domain.VariantKind) (domain.EntryContext, error) {
	ctx := domain.EntryContext{Kind: kind}

	url, ok := attrs[AttrURL]
	if !ok || len(url) == 0 {
		return domain.EntryContext{}, corrupt(AttrURL)
	}
	ctx.URL = string(url)

	rawAccess, ok := attrs[AttrLastAccess]
	if !ok {
		return domain.EntryContext{}, corrupt(AttrLastAccess)
	}
	access, err := parseTime(string(rawAccess))
	if err != nil {
		return domain.EntryContext{}, corrupt(AttrLastAccess)
	}
	ctx.LastAccess = access

	rawTTL, ok := attrs[AttrTTL]
	if !ok {
		return domain.EntryContext{}, corrupt(AttrTTL)
	}
	ttl, err := parseTTL(string(rawTTL))
	if err != nil {
		return domain.EntryContext{}, corrupt(AttrTTL)
	}
	ctx.TTL = ttl

	if ctx.Dimensions.Width, err = parseDimension(attrs[AttrWidth]); err != nil {
		return domain.EntryContext{}, corrupt(AttrWidth)
	}
	if ctx.Dimensions.Height, err = parseDimension(attrs[AttrHeight]); err != nil {
		return domain.EntryContext{}, corrupt(AttrHeight)
	}

	ctx.UpdateExpiryOnAccess = parseBool(attrs[AttrTouch])
	ctx.Animated = parseBool(attrs[AttrAnimated])
	ctx.TreatAsPlaceholder = parseBool(attrs[AttrPlaceholder])
	ctx.ImageType = string(attrs[AttrImageType])

	switch kind {
	case domain.KindPartial:
		if lmd := string(attrs[AttrLastModified]); lmd != absentMarker {
			ctx.LastModified = lmd
		}
		if raw, ok := attrs[AttrContentLen]; ok {
			n, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil || n < 0 {
				return domain.EntryContext{}, corrupt(AttrContentLen)
			}
			ctx.ExpectedContentLength = n
		}
	case domain.KindComplete:
	default:
		return domain.EntryContext{}, corrupt("kind")
	}

	return ctx, nil
}

func corrupt(attr string) error {
	return zerr.With(zerr.Wrap(domain.ErrCorruptMetadata, "failed to decode metadata"), "attribute", attr)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, n).UTC(), nil
}

// formatTTL writes whole seconds with an optional nanosecond fraction so the
// value survives a round trip exactly.
func formatTTL(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	secs := int64(d / time.Second)
	nanos := int64(d % time.Second)
	if nanos == 0 {
		return fmt.Sprintf("%s%d", sign, secs)
	}
	return fmt.Sprintf("%s%d.%09d", sign, secs, nanos)
}

func parseTTL(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, hasFrac := strings.Cut(s, ".")
	secs, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	d := time.Duration(secs) * time.Second
	if hasFrac {
		if len(frac) == 0 || len(frac) > 9 {
			return 0, strconv.ErrSyntax
		}
		frac += strings.Repeat("0", 9-len(frac))
		nanos, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, err
		}
		d += time.Duration(nanos)
	}
	if neg {
		d = -d
	}
	return d, nil
}

func parseDimension(raw []byte) (float64, error) {
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, strconv.ErrRange
	}
	return v, nil
}

func formatBool(b bool) []byte {
	if b {
		return []byte{'1'}
	}
	return []byte{'0'}
}

func parseBool(raw []byte) bool {
	return len(raw) == 1 && raw[0] == '1'
}
