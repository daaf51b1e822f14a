package commands

import (
	"context"
	"fmt"

	"komandir/internal/command"
)

// Reload atomically rebuilds the registry table from the startup factory
// list. Admin only; mostly useful after editing command wiring in dev.
func Reload(reg *command.Registry, build func() []*command.Spec) *command.Spec {
	return &command.Spec{
		Name:        "reload",
		Category:    categoryCore,
		Description: "Rebuild the command table",
		Flags:       command.Flags{RequireAdmin: true, SlashEnabled: true},
		Handler: func(ctx context.Context, inv command.Invocation) error {
			if err := reg.Reload(build()); err != nil {
				return fmt.Errorf("reload failed: %w", err)
			}
			_, err := inv.Replier().Reply(fmt.Sprintf("Reloaded %d commands.", reg.Len()))
			return err
		},
	}
}
