// Package commands holds the built-in command set. Each function is a
// factory yielding an immutable spec; main assembles the full list at
// startup and hands it to the registry.
package commands

import (
	"context"
	"time"

	"komandir/internal/command"
)

const categoryCore = "🛠️ Core"

// Ping is the canonical liveness check.
func Ping() *command.Spec {
	return &command.Spec{
		Name:        "ping",
		Aliases:     []string{"p"},
		Category:    categoryCore,
		Description: "Check that the bot is alive",
		Flags:       command.Flags{SlashEnabled: true},
		Cooldown:    3 * time.Second,
		Handler: func(ctx context.Context, inv command.Invocation) error {
			started := time.Now()
			h, err := inv.Replier().Reply("🏓 Pong!")
			if err != nil {
				return err
			}
			took := time.Since(started)
			return inv.Replier().Edit(h, "🏓 Pong! "+took.Round(time.Millisecond).String())
		},
	}
}
