package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"komandir/internal/command"
	"komandir/internal/throttle"
)

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

func newTestController(limits RateLimits, admins ...string) (*Controller, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := throttle.NewStoreWithNow(clock.Now)
	return NewController(store, admins, limits), clock
}

func guildInvocation(actor string) *command.TextInvocation {
	return &command.TextInvocation{
		Actor:   actor,
		Guild:   "g1",
		Channel: "c1",
		Command: "ping",
	}
}

func TestGuildOnlyGate(t *testing.T) {
	c, _ := newTestController(RateLimits{})
	spec := &command.Spec{Name: "ping", Flags: command.Flags{GuildOnly: true}}

	inv := guildInvocation("u1")
	inv.Guild = ""
	denial := c.Admit(inv, spec)
	require.NotNil(t, denial)
	assert.Equal(t, GateGuildOnly, denial.Gate)

	assert.Nil(t, c.Admit(guildInvocation("u1"), spec))
}

func TestNSFWGate(t *testing.T) {
	c, _ := newTestController(RateLimits{})
	spec := &command.Spec{Name: "lewd", Flags: command.Flags{NSFWOnly: true}}

	inv := guildInvocation("u1")
	inv.Command = "lewd"
	denial := c.Admit(inv, spec)
	require.NotNil(t, denial)
	assert.Equal(t, GateNSFW, denial.Gate)

	inv.NSFW = true
	assert.Nil(t, c.Admit(inv, spec))
}

func TestAdminGate(t *testing.T) {
	c, _ := newTestController(RateLimits{}, "admin-1")
	spec := &command.Spec{Name: "reload", Flags: command.Flags{RequireAdmin: true}}

	denial := c.Admit(guildInvocation("pleb"), spec)
	require.NotNil(t, denial)
	assert.Equal(t, GateAdmin, denial.Gate)

	assert.Nil(t, c.Admit(guildInvocation("admin-1"), spec))
}

func TestPermissionGates(t *testing.T) {
	c, _ := newTestController(RateLimits{})
	spec := &command.Spec{
		Name:            "purge",
		BotPermissions:  []int64{0x2000}, // manage messages
		UserPermissions: []int64{0x2000},
	}

	inv := guildInvocation("u1")
	denial := c.Admit(inv, spec)
	require.NotNil(t, denial)
	assert.Equal(t, GateBotPermission, denial.Gate, "bot permission checked before user permission")

	inv.BotPerms = 0x2000
	denial = c.Admit(inv, spec)
	require.NotNil(t, denial)
	assert.Equal(t, GateUserPermission, denial.Gate)

	inv.Perms = 0x2000
	assert.Nil(t, c.Admit(inv, spec))
}

func TestPermissionGatesSkippedInDMs(t *testing.T) {
	c, _ := newTestController(RateLimits{})
	spec := &command.Spec{Name: "ping", UserPermissions: []int64{0x2000}}

	inv := guildInvocation("u1")
	inv.Guild = ""
	assert.Nil(t, c.Admit(inv, spec))
}

func TestCooldownGateTiming(t *testing.T) {
	c, clock := newTestController(RateLimits{})
	spec := &command.Spec{Name: "ping", Cooldown: 3 * time.Second}

	require.Nil(t, c.Admit(guildInvocation("u1"), spec), "t=0 allowed")

	clock.Advance(time.Second)
	denial := c.Admit(guildInvocation("u1"), spec)
	require.NotNil(t, denial, "t=1s denied")
	assert.Equal(t, GateCooldown, denial.Gate)
	assert.Equal(t, 2*time.Second, denial.RetryAfter)

	clock.Advance(2100 * time.Millisecond)
	assert.Nil(t, c.Admit(guildInvocation("u1"), spec), "t=3.1s allowed")
}

func TestCooldownScopedPerUser(t *testing.T) {
	c, _ := newTestController(RateLimits{})
	spec := &command.Spec{Name: "ping", Cooldown: 3 * time.Second}

	require.Nil(t, c.Admit(guildInvocation("u1"), spec))
	assert.Nil(t, c.Admit(guildInvocation("u2"), spec), "another actor has their own cooldown")
}

func TestGlobalRateLimit(t *testing.T) {
	c, clock := newTestController(RateLimits{GlobalMax: 5, GlobalWindow: 5 * time.Second})
	spec := &command.Spec{Name: "ping"}

	for i := 0; i < 5; i++ {
		// Different actors: the global window counts everyone.
		inv := guildInvocation(string(rune('a' + i)))
		require.Nil(t, c.Admit(inv, spec), "invocation %d allowed", i+1)
	}

	denial := c.Admit(guildInvocation("z"), spec)
	require.NotNil(t, denial, "6th invocation inside the window is denied")
	assert.Equal(t, GateRateLimit, denial.Gate)
	assert.Greater(t, denial.RetryAfter, time.Duration(0))

	clock.Advance(5 * time.Second)
	assert.Nil(t, c.Admit(guildInvocation("z"), spec), "next window allows again")
}

func TestDenialDoesNotArmCooldown(t *testing.T) {
	c, _ := newTestController(RateLimits{}, "admin-1")
	spec := &command.Spec{
		Name:     "reload",
		Flags:    command.Flags{RequireAdmin: true},
		Cooldown: time.Minute,
	}

	// Denied at the admin gate; the cooldown gate's logic must not run.
	require.NotNil(t, c.Admit(guildInvocation("pleb"), spec))

	// The same actor promoted to admin passes immediately: no cooldown was
	// armed by the earlier denial.
	c.Admins["pleb"] = true
	assert.Nil(t, c.Admit(guildInvocation("pleb"), spec))
}

func TestGateOrder(t *testing.T) {
	c, _ := newTestController(RateLimits{})
	spec := &command.Spec{
		Name:  "x",
		Flags: command.Flags{GuildOnly: true, NSFWOnly: true, RequireAdmin: true},
	}

	// Everything about this invocation is wrong; the first gate wins.
	inv := &command.TextInvocation{Actor: "u1", Command: "x"}
	denial := c.Admit(inv, spec)
	require.NotNil(t, denial)
	assert.Equal(t, GateGuildOnly, denial.Gate)

	inv.Guild = "g1"
	denial = c.Admit(inv, spec)
	require.NotNil(t, denial)
	assert.Equal(t, GateNSFW, denial.Gate)

	inv.NSFW = true
	denial = c.Admit(inv, spec)
	require.NotNil(t, denial)
	assert.Equal(t, GateAdmin, denial.Gate)
}
