package commands

import (
	"context"
	"fmt"
	"strings"

	"komandir/internal/command"
	"komandir/internal/storage"
)

// Stats shows this guild's recent command activity from the persistent
// store, plus a running view counter.
func Stats(store *storage.Storage) *command.Spec {
	return &command.Spec{
		Name:        "stats",
		Category:    categoryCore,
		Description: "Show recent command activity in this server",
		Flags:       command.Flags{GuildOnly: true, SlashEnabled: true},
		Handler: func(ctx context.Context, inv command.Invocation) error {
			views, err := store.Add("stats:views:"+inv.GuildID(), 1)
			if err != nil {
				return err
			}
			history, err := store.FetchCommandHistory(inv.GuildID())
			if err != nil {
				return err
			}

			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("**Recent commands** (stats viewed %.0f times)\n", views))
			if len(history) == 0 {
				sb.WriteString("nothing yet")
			}
			for _, rec := range history {
				sb.WriteString(fmt.Sprintf("`%s` by <@%s> via %s\n", rec.Command, rec.UserID, rec.Kind))
			}

			_, err = inv.Replier().Reply(sb.String())
			return err
		},
	}
}
