package domain

import "go.trai.ch/zerr"

var (
	// ErrNotFound is returned when no entry or variant exists for an identifier.
	ErrNotFound = zerr.New("entry not found")

	// ErrInvalidInput is returned for a missing identifier or an inconsistent entry.
	ErrInvalidInput = zerr.New("invalid cache entry")

	// ErrMissingIdentifier is returned when an entry has no identifier.
	ErrMissingIdentifier = zerr.New("missing identifier")

	// ErrMissingURL is returned when a context without a URL is encoded.
	ErrMissingURL = zerr.New("context has no url")

	// ErrIOFailure is returned when a filesystem create, copy, move, delete or write fails.
	ErrIOFailure = zerr.New("filesystem operation failed")

	// ErrCapacityExceeded marks a variant larger than the per-entry size cap.
	// It is only surfaced through diagnostics.
	ErrCapacityExceeded = zerr.New("variant exceeds maximum entry size")

	// ErrCorruptMetadata is returned when stored attributes cannot be decoded.
	ErrCorruptMetadata = zerr.New("corrupt metadata")

	// ErrCacheClosed is returned by operations on a closed cache.
	ErrCacheClosed = zerr.New("cache is closed")

	// ErrCacheUnavailable is returned by mutations on a cache whose bootstrap failed.
	ErrCacheUnavailable = zerr.New("disk cache is unavailable")

	// ErrTempFileClosed is returned when writing to or finalizing a temp file that is no longer open.
	ErrTempFileClosed = zerr.New("temp file is closed")

	// ErrCacheNotConfigured is returned when an operation names a cache that does not exist.
	ErrCacheNotConfigured = zerr.New("cache is not configured")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidCacheName is returned when a cache name is empty, reserved or contains path separators.
	ErrInvalidCacheName = zerr.New("cache name can only contain alphanumeric characters, hyphens and underscores")

	// ErrDuplicateCacheName is returned when two caches share a name.
	ErrDuplicateCacheName = zerr.New("duplicate cache name")

	// ErrInvalidSize is returned when a size setting cannot be parsed.
	ErrInvalidSize = zerr.New("invalid size")

	// ErrInvalidDuration is returned when a duration setting cannot be parsed.
	ErrInvalidDuration = zerr.New("invalid duration")
)
