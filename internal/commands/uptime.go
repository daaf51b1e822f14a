package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"komandir/internal/command"
	"komandir/internal/shard"
	"komandir/internal/version"
)

// Uptime queries one shard for its uptime, defaulting to the local one.
// Accepts an optional shard id so operators can poke a specific sibling.
func Uptime(coord *shard.Coordinator) *command.Spec {
	return &command.Spec{
		Name:        "uptime",
		Category:    categoryCore,
		Description: "Show a shard's uptime and version",
		Flags:       command.Flags{SlashEnabled: true},
		Options: []command.Option{
			{Name: "shard", Description: "Shard id to query", Type: command.OptionInteger},
		},
		Handler: func(ctx context.Context, inv command.Invocation) error {
			target := coord.Descriptor().ID
			switch v := inv.(type) {
			case *command.InteractionInvocation:
				if _, set := v.Options["shard"]; set {
					target = int(v.IntOption("shard"))
				}
			case *command.TextInvocation:
				if len(v.Args) > 0 {
					fmt.Sscanf(v.Args[0], "%d", &target)
				}
			}

			raw, err := coord.EvalOnOne(ctx, target, shard.OpUptime, nil)
			if err != nil {
				if errors.Is(err, shard.ErrShardUnavailable) {
					_, rerr := inv.Replier().Reply(fmt.Sprintf("Shard %d did not respond.", target))
					return rerr
				}
				return err
			}

			var u shard.UptimeResult
			if err := json.Unmarshal(raw, &u); err != nil {
				return fmt.Errorf("malformed uptime result: %w", err)
			}
			up := (time.Duration(u.Seconds) * time.Second).String()
			_, err = inv.Replier().Reply(fmt.Sprintf("Shard %d up %s — %s %s", target, up, version.AppName, version.Short()))
			return err
		},
	}
}
