package discord

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"komandir/internal/command"
)

// registerSlashCommands overwrites the application's global command set
// with every registered spec that enables the slash surface.
func (b *Bot) registerSlashCommands() error {
	appID := b.dg.State.User.ID
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return fmt.Errorf("failed to fetch self: %w", err)
		}
		appID = user.ID
	}

	var wanted []*discordgo.ApplicationCommand
	for _, spec := range b.registry.All() {
		if !spec.Flags.SlashEnabled {
			continue
		}
		wanted = append(wanted, slashDefinition(spec))
	}

	if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, "", wanted); err != nil {
		return fmt.Errorf("failed to overwrite application commands: %w", err)
	}
	log.Printf("[INFO] Registered %d slash commands", len(wanted))
	return nil
}

func slashDefinition(spec *command.Spec) *discordgo.ApplicationCommand {
	def := &discordgo.ApplicationCommand{
		Name:        spec.Name,
		Description: spec.Description,
		Type:        discordgo.ChatApplicationCommand,
	}
	for _, opt := range spec.Options {
		def.Options = append(def.Options, &discordgo.ApplicationCommandOption{
			Name:        opt.Name,
			Description: opt.Description,
			Type:        optionType(opt.Type),
			Required:    opt.Required,
		})
	}
	return def
}

func optionType(t command.OptionType) discordgo.ApplicationCommandOptionType {
	switch t {
	case command.OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case command.OptionBoolean:
		return discordgo.ApplicationCommandOptionBoolean
	case command.OptionUser:
		return discordgo.ApplicationCommandOptionUser
	case command.OptionChannel:
		return discordgo.ApplicationCommandOptionChannel
	}
	return discordgo.ApplicationCommandOptionString
}
