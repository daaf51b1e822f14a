package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"komandir/internal/command"
	"komandir/internal/shard"
)

// Shards aggregates fleet-wide numbers with a broadcast eval. Shards that
// do not answer in time are simply missing from the table.
func Shards(coord *shard.Coordinator) *command.Spec {
	return &command.Spec{
		Name:        "shards",
		Aliases:     []string{"fleet"},
		Category:    categoryCore,
		Description: "Show per-shard guild counts and uptime",
		Flags:       command.Flags{SlashEnabled: true},
		Cooldown:    10 * time.Second,
		Handler: func(ctx context.Context, inv command.Invocation) error {
			guilds := coord.EvalOnAll(ctx, shard.OpGuildCount, nil)
			uptimes := coord.EvalOnAll(ctx, shard.OpUptime, nil)

			uptimeByShard := make(map[int]float64, len(uptimes))
			for _, res := range uptimes {
				var u shard.UptimeResult
				if err := json.Unmarshal(res.Value, &u); err == nil {
					uptimeByShard[res.ShardID] = u.Seconds
				}
			}

			total := coord.Descriptor().Total
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("**Fleet** (%d/%d shards reporting)\n", len(guilds), total))
			sum := 0
			for _, res := range guilds {
				var g shard.GuildCountResult
				if err := json.Unmarshal(res.Value, &g); err != nil {
					continue
				}
				sum += g.Guilds
				line := fmt.Sprintf("shard %d: %d guilds", res.ShardID, g.Guilds)
				if secs, ok := uptimeByShard[res.ShardID]; ok {
					line += fmt.Sprintf(", up %s", (time.Duration(secs) * time.Second).String())
				}
				sb.WriteString(line + "\n")
			}
			sb.WriteString(fmt.Sprintf("total guilds: %d", sum))

			_, err := inv.Replier().Reply(sb.String())
			return err
		},
	}
}
