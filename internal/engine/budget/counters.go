// Package budget owns the byte and entry totals shared by every disk cache
// in the process and the pruning that keeps them within the configured budget.
package budget

import "sync/atomic"

// Counters are the aggregate totals across all registered caches.
// Reads are lock-free and may briefly trail in-flight updates.
type Counters struct {
	bytes atomic.Int64
	count atomic.Int64
}

// Add applies a signed delta to both totals.
func (c *Counters) Add(bytes, count int64) {
	if bytes != 0 {
		c.bytes.Add(bytes)
	}
	if count != 0 {
		c.count.Add(count)
	}
}

// Bytes returns the total stored bytes.
func (c *Counters) Bytes() int64 {
	return c.bytes.Load()
}

// Count returns the total number of entries.
func (c *Counters) Count() int64 {
	return c.count.Load()
}
