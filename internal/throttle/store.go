// Package throttle keeps the per-shard cooldown and rate-limit counters.
// State is process-local: each shard throttles independently, which is a
// documented scaling limitation rather than a bug.
package throttle

import (
	"context"
	"log"
	"sync"
	"time"
)

// ScopeKind is the granularity a counter is tracked under.
type ScopeKind int

const (
	ScopeUser ScopeKind = iota
	ScopeGuild
	ScopeGlobal
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeUser:
		return "user"
	case ScopeGuild:
		return "guild"
	}
	return "global"
}

// Key scopes one counter: a command name plus the scope it is tracked under.
// ScopeID is empty for global scopes.
type Key struct {
	Command string
	Kind    ScopeKind
	ScopeID string
}

// Limit is one fixed-window rate limit to check against a key.
type Limit struct {
	Key    Key
	Window time.Duration
	Max    int
}

// Denial reports why a Reserve was refused. RetryAfter is how long the
// caller should wait before the same key can pass.
type Denial struct {
	ByCooldown bool
	Limit      Limit
	RetryAfter time.Duration
}

type window struct {
	start time.Time
	count int
}

// Store holds cooldown expiries and rate-limit windows behind one mutex so
// concurrent invocations racing on the same scope cannot both pass. Expired
// entries are treated as absent on read; Sweep reclaims them in the
// background.
type Store struct {
	mu        sync.Mutex
	cooldowns map[Key]time.Time
	windows   map[Key]*window
	now       func() time.Time
}

// NewStore returns an empty store using the wall clock.
func NewStore() *Store {
	return NewStoreWithNow(time.Now)
}

// NewStoreWithNow returns a store with an injectable clock. Tests use this
// to drive cooldown expiry deterministically.
func NewStoreWithNow(now func() time.Time) *Store {
	return &Store{
		cooldowns: make(map[Key]time.Time),
		windows:   make(map[Key]*window),
		now:       now,
	}
}

// CheckAndArm atomically checks a cooldown key: if absent or expired it arms
// a new expiry and allows; otherwise it denies with the remaining duration.
func (s *Store) CheckAndArm(key Key, d time.Duration) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if remaining := s.cooldownRemaining(key); remaining > 0 {
		return false, remaining
	}
	s.armCooldown(key, d)
	return true, 0
}

// Increment atomically advances a fixed-window counter: when the window has
// elapsed the counter resets to one; otherwise the count is incremented and
// denied once it exceeds max.
func (s *Store) Increment(key Key, windowDur time.Duration, max int) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= windowDur {
		s.windows[key] = &window{start: now, count: 1}
		return true, 0
	}
	w.count++
	if w.count > max {
		return false, w.start.Add(windowDur).Sub(now)
	}
	return true, 0
}

// Reserve checks a cooldown and any number of rate limits and arms all of
// them only when every check passes, under a single critical section. A
// denied reservation leaves no trace in the store. Cooldown is skipped when
// its duration is zero; limits with Max <= 0 are skipped.
func (s *Store) Reserve(cooldownKey Key, cooldown time.Duration, limits []Limit) *Denial {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	if cooldown > 0 {
		if remaining := s.cooldownRemaining(cooldownKey); remaining > 0 {
			return &Denial{ByCooldown: true, RetryAfter: remaining}
		}
	}
	for _, lim := range limits {
		if lim.Max <= 0 {
			continue
		}
		if w, ok := s.windows[lim.Key]; ok && now.Sub(w.start) < lim.Window && w.count >= lim.Max {
			return &Denial{Limit: lim, RetryAfter: w.start.Add(lim.Window).Sub(now)}
		}
	}

	// Every check passed; arm everything.
	if cooldown > 0 {
		s.armCooldown(cooldownKey, cooldown)
	}
	for _, lim := range limits {
		if lim.Max <= 0 {
			continue
		}
		if w, ok := s.windows[lim.Key]; ok && now.Sub(w.start) < lim.Window {
			w.count++
		} else {
			s.windows[lim.Key] = &window{start: now, count: 1}
		}
	}
	return nil
}

// cooldownRemaining reports how long a key stays armed. Zero means the key
// is absent or expired. Caller holds s.mu.
func (s *Store) cooldownRemaining(key Key) time.Duration {
	expiry, ok := s.cooldowns[key]
	if !ok {
		return 0
	}
	remaining := expiry.Sub(s.now())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// armCooldown sets a new expiry. Caller holds s.mu.
func (s *Store) armCooldown(key Key, d time.Duration) {
	s.cooldowns[key] = s.now().Add(d)
}

// Sweep drops expired cooldowns and stale windows. Correctness never
// depends on it; it only bounds memory.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, expiry := range s.cooldowns {
		if !expiry.After(now) {
			delete(s.cooldowns, k)
			removed++
		}
	}
	for k, w := range s.windows {
		// Windows older than an hour are long past any configured span.
		if now.Sub(w.start) > time.Hour {
			delete(s.windows, k)
			removed++
		}
	}
	return removed
}

// RunSweeper clears expired entries on an interval until ctx is done.
// Call from main.
func RunSweeper(ctx context.Context, s *Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Printf("[INFO] Throttle sweep removed %d expired entries", n)
			}
		}
	}
}
