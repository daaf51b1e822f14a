package dispatch

import (
	"fmt"
	"time"

	"komandir/internal/command"
	"komandir/internal/throttle"
)

// RateLimits configures the controller's fixed-window counters. A zero Max
// disables that window.
type RateLimits struct {
	GlobalMax    int
	GlobalWindow time.Duration
	UserMax      int
	UserWindow   time.Duration
	GuildMax     int
	GuildWindow  time.Duration
}

// Controller runs the ordered admission chain. Gates are pure checks; the
// cooldown and rate-limit state is armed in one atomic step only after the
// whole chain has passed, so a denial anywhere leaves no side effects.
type Controller struct {
	Admins map[string]bool
	Store  *throttle.Store
	Limits RateLimits
}

// NewController builds a controller over the given throttle store.
func NewController(store *throttle.Store, adminIDs []string, limits RateLimits) *Controller {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Controller{Admins: admins, Store: store, Limits: limits}
}

// Admit runs the gates in fixed order against an invocation and its
// resolved spec, short-circuiting on the first denial. A nil result means
// the invocation is allowed and its cooldown/rate-limit scopes are armed.
func (c *Controller) Admit(inv command.Invocation, spec *command.Spec) *Denial {
	if spec.Flags.GuildOnly && inv.GuildID() == "" {
		return &Denial{Gate: GateGuildOnly, Detail: "command is only available in a guild"}
	}
	if spec.Flags.NSFWOnly && !inv.ChannelNSFW() {
		return &Denial{Gate: GateNSFW, Detail: "command is only available in nsfw channels"}
	}
	if spec.Flags.RequireAdmin && !c.Admins[inv.ActorID()] {
		return &Denial{Gate: GateAdmin, Detail: "command requires an admin"}
	}
	// Permission bits only exist in guild channels; DMs carry none.
	if inv.GuildID() != "" {
		for _, p := range spec.BotPermissions {
			if inv.BotPermissions()&p == 0 {
				return &Denial{Gate: GateBotPermission, Detail: fmt.Sprintf("bot lacks permission 0x%x", p)}
			}
		}
		for _, p := range spec.UserPermissions {
			if inv.ActorPermissions()&p == 0 {
				return &Denial{Gate: GateUserPermission, Detail: fmt.Sprintf("you lack permission 0x%x", p)}
			}
		}
	}

	// Cooldown and rate-limit checks arm as one critical section; both are
	// read-and-write gates and must not leave state behind when the other
	// denies.
	cooldownKey := throttle.Key{Command: spec.Name, Kind: throttle.ScopeUser, ScopeID: inv.ActorID()}
	if denial := c.Store.Reserve(cooldownKey, spec.Cooldown, c.limits(inv)); denial != nil {
		if denial.ByCooldown {
			return &Denial{
				Gate:       GateCooldown,
				Detail:     "command is on cooldown",
				RetryAfter: denial.RetryAfter,
			}
		}
		return &Denial{
			Gate:       GateRateLimit,
			Detail:     fmt.Sprintf("%s rate limit exceeded", denial.Limit.Key.Kind),
			RetryAfter: denial.RetryAfter,
		}
	}
	return nil
}

// limits builds the applicable fixed-window checks: global always, per-user
// always, per-guild only in guild context.
func (c *Controller) limits(inv command.Invocation) []throttle.Limit {
	limits := []throttle.Limit{
		{
			Key:    throttle.Key{Kind: throttle.ScopeGlobal},
			Window: c.Limits.GlobalWindow,
			Max:    c.Limits.GlobalMax,
		},
		{
			Key:    throttle.Key{Kind: throttle.ScopeUser, ScopeID: inv.ActorID()},
			Window: c.Limits.UserWindow,
			Max:    c.Limits.UserMax,
		},
	}
	if inv.GuildID() != "" {
		limits = append(limits, throttle.Limit{
			Key:    throttle.Key{Kind: throttle.ScopeGuild, ScopeID: inv.GuildID()},
			Window: c.Limits.GuildWindow,
			Max:    c.Limits.GuildMax,
		})
	}
	return limits
}
