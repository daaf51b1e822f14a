package shard

import (
	"context"
	"encoding/json"
	"time"
)

// The closed set of remote operations. Anything not named here cannot be
// evaluated across the process boundary.
const (
	OpPing         = "ping"
	OpGuildCount   = "guild_count"
	OpUptime       = "uptime"
	OpCommandCount = "command_count"
)

// StatsProvider supplies the local numbers the default operations report.
type StatsProvider interface {
	GuildCount() int
	CommandCount() int
}

// PingResult answers OpPing.
type PingResult struct {
	ShardID int    `json:"shard_id"`
	State   string `json:"state"`
}

// GuildCountResult answers OpGuildCount.
type GuildCountResult struct {
	Guilds int `json:"guilds"`
}

// UptimeResult answers OpUptime.
type UptimeResult struct {
	Seconds float64 `json:"seconds"`
}

// CommandCountResult answers OpCommandCount.
type CommandCountResult struct {
	Commands int `json:"commands"`
}

// RegisterDefaultOps wires the built-in operation set against local state.
func RegisterDefaultOps(c *Coordinator, stats StatsProvider, startedAt time.Time) {
	c.RegisterOp(OpPing, func(ctx context.Context, args json.RawMessage) (any, error) {
		return PingResult{ShardID: c.Descriptor().ID, State: c.State().String()}, nil
	})
	c.RegisterOp(OpGuildCount, func(ctx context.Context, args json.RawMessage) (any, error) {
		return GuildCountResult{Guilds: stats.GuildCount()}, nil
	})
	c.RegisterOp(OpUptime, func(ctx context.Context, args json.RawMessage) (any, error) {
		return UptimeResult{Seconds: time.Since(startedAt).Seconds()}, nil
	})
	c.RegisterOp(OpCommandCount, func(ctx context.Context, args json.RawMessage) (any, error) {
		return CommandCountResult{Commands: stats.CommandCount()}, nil
	})
}
