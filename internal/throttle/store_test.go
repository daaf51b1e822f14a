package throttle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a store's time by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	return NewStoreWithNow(clock.Now), clock
}

func userKey(cmd string) Key {
	return Key{Command: cmd, Kind: ScopeUser, ScopeID: "user-1"}
}

func TestCheckAndArmTiming(t *testing.T) {
	s, clock := newTestStore()
	key := userKey("ping")

	ok, _ := s.CheckAndArm(key, 3*time.Second)
	require.True(t, ok, "first invocation must pass")

	clock.Advance(1 * time.Second)
	ok, remaining := s.CheckAndArm(key, 3*time.Second)
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, remaining)

	clock.Advance(2100 * time.Millisecond) // t = 3.1s
	ok, _ = s.CheckAndArm(key, 3*time.Second)
	assert.True(t, ok, "expired cooldown must pass again")
}

func TestIncrementFixedWindow(t *testing.T) {
	s, clock := newTestStore()
	key := Key{Kind: ScopeGlobal}

	for i := 0; i < 5; i++ {
		ok, _ := s.Increment(key, 5*time.Second, 5)
		require.True(t, ok, "invocation %d should pass", i+1)
	}

	ok, retry := s.Increment(key, 5*time.Second, 5)
	assert.False(t, ok, "6th invocation inside the window is denied")
	assert.Greater(t, retry, time.Duration(0))

	clock.Advance(5 * time.Second)
	ok, _ = s.Increment(key, 5*time.Second, 5)
	assert.True(t, ok, "window reset allows again")
}

func TestReserveArmsOnlyWhenAllPass(t *testing.T) {
	s, _ := newTestStore()
	cd := userKey("ping")
	limits := []Limit{{Key: Key{Kind: ScopeGlobal}, Window: 5 * time.Second, Max: 1}}

	require.Nil(t, s.Reserve(cd, 3*time.Second, limits))

	// Same actor again: cooldown denies, and the denial must not consume
	// rate-limit budget.
	denial := s.Reserve(cd, 3*time.Second, limits)
	require.NotNil(t, denial)
	assert.True(t, denial.ByCooldown)

	other := userKey("other")
	denial = s.Reserve(other, 0, limits)
	require.NotNil(t, denial, "global window of 1 is already spent")
	assert.False(t, denial.ByCooldown)

	// The rate-limit denial above must not have armed the other cooldown.
	w, ok := s.windows[Key{Kind: ScopeGlobal}]
	require.True(t, ok)
	assert.Equal(t, 1, w.count, "denied reservations must not mutate counters")
}

func TestReserveDeniedByLimitLeavesCooldownUnarmed(t *testing.T) {
	s, _ := newTestStore()
	limits := []Limit{{Key: Key{Kind: ScopeGlobal}, Window: 5 * time.Second, Max: 1}}

	require.Nil(t, s.Reserve(userKey("a"), 3*time.Second, limits))
	denial := s.Reserve(userKey("b"), 3*time.Second, limits)
	require.NotNil(t, denial)

	// Cooldown for "b" must still be cold.
	ok, _ := s.CheckAndArm(userKey("b"), 3*time.Second)
	assert.True(t, ok)
}

func TestReserveConcurrentSameKey(t *testing.T) {
	s := NewStore()
	cd := userKey("ping")

	var wg sync.WaitGroup
	passed := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Reserve(cd, time.Minute, nil) == nil {
				passed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(passed)

	count := 0
	for range passed {
		count++
	}
	assert.Equal(t, 1, count, "exactly one racer may arm the cooldown")
}

func TestSweepRemovesExpired(t *testing.T) {
	s, clock := newTestStore()
	s.CheckAndArm(userKey("ping"), time.Second)
	s.Increment(Key{Kind: ScopeGlobal}, time.Second, 5)

	assert.Equal(t, 0, s.Sweep(), "nothing expired yet")

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 2, s.Sweep())
	assert.Empty(t, s.cooldowns)
	assert.Empty(t, s.windows)
}
