package budget

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports"
)

// Prunable is a cache the governor can evict from.
type Prunable interface {
	Name() string
	// EvictLRU removes least recently used entries while over reports true
	// and returns how many entries were removed.
	EvictLRU(over func() bool) int
}

// Governor owns the shared counters and runs prune passes when they exceed the budget.
type Governor struct {
	budget   domain.Budget
	counters *Counters
	logger   ports.Logger

	mu       sync.Mutex
	caches   []Prunable
	priority Prunable

	pruneMu sync.Mutex
	evicted atomic.Int64

	kick      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewGovernor creates a Governor and starts its background prune loop.
func NewGovernor(budget domain.Budget, logger ports.Logger) *Governor {
	g := &Governor{
		budget:   budget,
		counters: &Counters{},
		logger:   logger,
		kick:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go g.loop()
	return g
}

// Counters returns the shared totals.
func (g *Governor) Counters() *Counters {
	return g.counters
}

// Evicted returns how many entries prune passes have removed so far.
func (g *Governor) Evicted() int64 {
	return g.evicted.Load()
}

// Budget returns the configured limits.
func (g *Governor) Budget() domain.Budget {
	return g.budget
}

// Over reports whether the totals exceed either limit.
func (g *Governor) Over() bool {
	if g.budget.MaxBytes > 0 && g.counters.Bytes() > g.budget.MaxBytes {
		return true
	}
	return g.budget.MaxCount > 0 && g.counters.Count() > g.budget.MaxCount
}

// Register adds a cache to the prune rotation.
func (g *Governor) Register(p Prunable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !slices.Contains(g.caches, p) {
		g.caches = append(g.caches, p)
	}
}

// Unregister removes a cache from the prune rotation.
func (g *Governor) Unregister(p Prunable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.caches = slices.DeleteFunc(g.caches, func(c Prunable) bool { return c == p })
	if g.priority == p {
		g.priority = nil
	}
}

// RequestPrune schedules a prune pass without blocking.
// Requests made before the loop runs are coalesced; the most recent priority wins.
func (g *Governor) RequestPrune(priority Prunable) {
	g.mu.Lock()
	if priority != nil {
		g.priority = priority
	}
	g.mu.Unlock()

	select {
	case g.kick <- struct{}{}:
	default:
	}
}

// PruneNow runs a prune pass synchronously, evicting from priority first.
// It must not be called from a cache's own executor.
func (g *Governor) PruneNow(priority Prunable) int {
	return g.prune(priority)
}

// Close stops the prune loop and waits for an in-flight pass to finish.
func (g *Governor) Close() {
	g.closeOnce.Do(func() {
		close(g.quit)
	})
	<-g.done
}

func (g *Governor) loop() {
	defer close(g.done)
	for {
		select {
		case <-g.quit:
			return
		case <-g.kick:
			g.mu.Lock()
			priority := g.priority
			g.priority = nil
			g.mu.Unlock()

			g.prune(priority)
		}
	}
}

func (g *Governor) prune(priority Prunable) int {
	g.pruneMu.Lock()
	defer g.pruneMu.Unlock()

	if !g.Over() {
		return 0
	}

	g.mu.Lock()
	order := make([]Prunable, 0, len(g.caches))
	if priority != nil && slices.Contains(g.caches, priority) {
		order = append(order, priority)
	}
	for _, c := range g.caches {
		if c != priority {
			order = append(order, c)
		}
	}
	g.mu.Unlock()

	evicted := 0
	for _, c := range order {
		evicted += c.EvictLRU(g.Over)
		if !g.Over() {
			break
		}
	}

	g.evicted.Add(int64(evicted))
	if evicted > 0 {
		g.logger.Info(fmt.Sprintf("pruned %d entries, %s in %d entries remain",
			evicted, humanize.IBytes(uint64(max(g.counters.Bytes(), 0))), g.counters.Count()))
	}
	return evicted
}
