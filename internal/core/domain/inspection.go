package domain

import "time"

// InspectedEntry is a diagnostic snapshot of one stored variant.
type InspectedEntry struct {
	Identifier     string
	SafeIdentifier string
	Path           string
	URL            string
	Dimensions     Dimensions
	Bytes          int64
	LastAccess     time.Time
	TTL            time.Duration
	Placeholder    bool
	Animated       bool
	// Checksum is the hex xxhash of the file, set only when requested.
	Checksum string
}

// Inspection is a snapshot of a cache's manifest, in most-recently-used order.
type Inspection struct {
	Cache      string
	Loaded     bool
	TotalBytes int64
	Complete   []InspectedEntry
	Partial    []InspectedEntry
}

// InspectOptions configures Inspect.
type InspectOptions struct {
	Checksums bool
}
