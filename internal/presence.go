package internal

import (
	"sync"
	"time"
)

// tickDebounce ignores presence ticks that arrive faster than the client's
// nominal one-per-second cadence.
const tickDebounce = time.Second

type onlineEntry struct {
	pending  int64
	lastTick time.Time
}

// OnlineTracker accumulates not-yet-persisted online seconds per nick.
// Entries are created on the first tick and kept for the life of the process;
// the flush cycle drains amounts into the store without deleting them.
type OnlineTracker struct {
	mu      sync.Mutex
	entries map[string]*onlineEntry
}

func NewOnlineTracker() *OnlineTracker {
	return &OnlineTracker{entries: make(map[string]*onlineEntry)}
}

// Tick credits one second to the nick. Ticks less than a second apart are
// ignored; otherwise the credit is one second regardless of the actual gap,
// matching the client's expected cadence.
func (t *OnlineTracker) Tick(nick string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[nick]
	if !ok {
		t.entries[nick] = &onlineEntry{pending: 1, lastTick: now}
		return
	}
	if now.Sub(entry.lastTick) < tickDebounce {
		return
	}
	entry.pending++
	entry.lastTick = now
}

// Pending returns the unflushed seconds for a nick.
func (t *OnlineTracker) Pending(nick string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[nick]; ok {
		return entry.pending
	}
	return 0
}

// Snapshot returns every nick with a non-zero pending amount. The caller
// flushes these to the store and reports back through Absorb, so no lock is
// held across store calls.
func (t *OnlineTracker) Snapshot() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending := make(map[string]int64, len(t.entries))
	for nick, entry := range t.entries {
		if entry.pending > 0 {
			pending[nick] = entry.pending
		}
	}
	return pending
}

// Absorb subtracts an amount that the store has persisted. Seconds ticked
// between Snapshot and Absorb stay pending for the next cycle.
func (t *OnlineTracker) Absorb(nick string, amount int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[nick]; ok {
		entry.pending -= amount
		if entry.pending < 0 {
			entry.pending = 0
		}
	}
}

// ResetGuard decides when the store-wide daily online reset fires. The check
// runs on a coarse timer; the guard makes sure crossing midnight in the
// reference zone triggers at most once per calendar day. Not safe for
// concurrent use; the single reset loop owns it.
type ResetGuard struct {
	location *time.Location
	firedDay string
}

func NewResetGuard(location *time.Location) *ResetGuard {
	if location == nil {
		location = time.UTC
	}
	return &ResetGuard{location: location}
}

// ShouldReset reports whether the reset is due at the given instant and marks
// the day as fired when it is.
func (g *ResetGuard) ShouldReset(now time.Time) bool {
	local := now.In(g.location)
	if local.Hour() != 0 {
		return false
	}
	day := local.Format("2006-01-02")
	if day == g.firedDay {
		return false
	}
	g.firedDay = day
	return true
}
