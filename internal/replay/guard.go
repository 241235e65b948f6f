// ABOUTME: Thread-safe TTL cache of recently accepted request signatures.
// ABOUTME: A signature seen twice inside the window is a replayed request.

package replay

import (
	"container/list"
	"sync"
	"time"
)

// guardEntry stores the timestamp and list element for a cached signature.
type guardEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Guard tracks signatures of accepted requests for the length of the
// timestamp window. Because a valid signature binds a specific timestamp,
// any signature presented a second time inside the window is a replay.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type Guard struct {
	mu      sync.RWMutex
	seen    map[string]*guardEntry
	order   *list.List // signatures in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewGuard creates a guard that remembers signatures for ttl, holding at
// most maxSize of them. ttl should be at least the server's timestamp
// window; older requests are already rejected as stale. A background
// goroutine periodically cleans up expired entries.
func NewGuard(ttl time.Duration, maxSize int) *Guard {
	g := &Guard{
		seen:    make(map[string]*guardEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go g.cleanup()
	return g
}

// Seen atomically checks whether a signature was already accepted and
// records it if not. Returns true for a replay, false for a first sight.
// The check and the record are one critical section so two concurrent
// copies of the same request cannot both pass.
func (g *Guard) Seen(signature string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.seen[signature]
	if ok && time.Since(entry.timestamp) < g.ttl {
		return true
	}

	g.recordLocked(signature)
	return false
}

// recordLocked is the internal record implementation. Must be called with mu held.
func (g *Guard) recordLocked(signature string) {
	now := time.Now()

	// A re-record of an expired signature refreshes it in place
	if entry, exists := g.seen[signature]; exists {
		entry.timestamp = now
		g.order.MoveToBack(entry.element)
		return
	}

	// Evict oldest if at capacity
	if len(g.seen) >= g.maxSize {
		g.evictOldest()
	}

	elem := g.order.PushBack(signature)
	g.seen[signature] = &guardEntry{
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
// O(1) operation using the linked list.
func (g *Guard) evictOldest() {
	front := g.order.Front()
	if front == nil {
		return
	}

	signature, _ := front.Value.(string)
	g.order.Remove(front)
	delete(g.seen, signature)
}

// Len reports how many signatures are currently tracked.
func (g *Guard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.seen)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (g *Guard) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.runCleanup()
		case <-g.done:
			return
		}
	}
}

// runCleanup removes all expired entries.
func (g *Guard) runCleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for signature, entry := range g.seen {
		if now.Sub(entry.timestamp) > g.ttl {
			g.order.Remove(entry.element)
			delete(g.seen, signature)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
