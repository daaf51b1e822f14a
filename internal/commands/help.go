package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"komandir/internal/command"
)

// Help lists the registered commands grouped by category. Takes the
// registry it describes; the handler reads it live so a reload is
// reflected immediately.
func Help(reg *command.Registry) *command.Spec {
	return &command.Spec{
		Name:        "help",
		Aliases:     []string{"h", "commands"},
		Category:    categoryCore,
		Description: "List available commands",
		Flags:       command.Flags{SlashEnabled: true},
		Handler: func(ctx context.Context, inv command.Invocation) error {
			byCategory := make(map[string][]*command.Spec)
			for _, spec := range reg.All() {
				byCategory[spec.Category] = append(byCategory[spec.Category], spec)
			}

			categories := make([]string, 0, len(byCategory))
			for c := range byCategory {
				categories = append(categories, c)
			}
			sort.Strings(categories)

			var sb strings.Builder
			for _, c := range categories {
				sb.WriteString("**" + c + "**\n")
				for _, spec := range byCategory[c] {
					sb.WriteString(fmt.Sprintf("`%s` — %s", spec.Name, spec.Description))
					if len(spec.Aliases) > 0 {
						sb.WriteString(" (aka " + strings.Join(spec.Aliases, ", ") + ")")
					}
					sb.WriteString("\n")
				}
			}

			_, err := inv.Replier().Reply(sb.String())
			return err
		},
	}
}
