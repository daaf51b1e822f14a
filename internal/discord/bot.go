// Package discord adapts the Discord gateway to the dispatch core: raw
// discordgo events become canonical dispatch events, gate denials become
// user-facing replies, and connection lifecycle feeds the shard coordinator.
package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"komandir/internal/command"
	"komandir/internal/config"
	"komandir/internal/dispatch"
	"komandir/internal/observer"
	"komandir/internal/shard"
)

// Bot owns the gateway session and routes its events into the dispatcher.
type Bot struct {
	cfg        *config.Config
	dg         *discordgo.Session
	dispatcher *dispatch.Dispatcher
	registry   *command.Registry
	coord      *shard.Coordinator
	sink       observer.Sink
	sendLim    *rate.Limiter
	startedAt  time.Time
}

// NewBot wires a bot. The dispatcher and coordinator are injected; nothing
// here is reached through ambient globals.
func NewBot(cfg *config.Config, d *dispatch.Dispatcher, reg *command.Registry, coord *shard.Coordinator, sink observer.Sink) *Bot {
	return &Bot{
		cfg:        cfg,
		dispatcher: d,
		registry:   reg,
		coord:      coord,
		sink:       sink,
		// Discord allows ~5 messages/5s per channel; one shared limiter
		// keeps burst replies under the global REST ceiling.
		sendLim:   rate.NewLimiter(rate.Limit(4), 4),
		startedAt: time.Now(),
	}
}

// GuildCount reports how many guilds this shard currently sees.
func (b *Bot) GuildCount() int {
	if b.dg == nil || b.dg.State == nil {
		return 0
	}
	return len(b.dg.State.Guilds)
}

// CommandCount reports the number of registered commands.
func (b *Bot) CommandCount() int {
	return b.registry.Len()
}

// StartedAt returns when this shard process came up.
func (b *Bot) StartedAt() time.Time { return b.startedAt }

// Run opens the gateway session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	dg.Identify.Intents = discordgo.IntentsAll
	dg.ShardID = b.cfg.ShardID
	dg.ShardCount = b.cfg.ShardCount

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onConnect)
	dg.AddHandler(b.onDisconnect)
	dg.AddHandler(b.onResumed)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onGuildDelete)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	return nil
}

// --- lifecycle ---

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if err := b.coord.Transition(shard.Ready); err != nil {
		log.Println("[WARN]", err)
	}

	if b.cfg.InitSlashCommands {
		if err := b.registerSlashCommands(); err != nil {
			log.Println("[ERR] Error registering slash commands:", err)
		}
	} else {
		log.Println("[INFO] Registering slash commands skipped")
	}

	log.Printf("[INFO] ✅ Shard %d/%d is running as %s.", b.cfg.ShardID, b.cfg.ShardCount, r.User.Username)
}

func (b *Bot) onConnect(s *discordgo.Session, _ *discordgo.Connect) {
	// A fresh connect after a drop means the host is re-handshaking.
	if b.coord.State() == shard.Disconnected {
		if err := b.coord.Transition(shard.Reconnecting); err != nil {
			log.Println("[WARN]", err)
		}
	}
}

func (b *Bot) onDisconnect(s *discordgo.Session, _ *discordgo.Disconnect) {
	if err := b.coord.Transition(shard.Disconnected); err != nil {
		log.Println("[WARN]", err)
	}
}

func (b *Bot) onResumed(s *discordgo.Session, _ *discordgo.Resumed) {
	if err := b.coord.Transition(shard.Ready); err != nil {
		log.Println("[WARN]", err)
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.sink.LogGuildEvent("guild_create", g.Guild.ID)
}

func (b *Bot) onGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	b.sink.LogGuildEvent("guild_delete", g.Guild.ID)
}

// --- inbound events ---

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	ev := dispatch.TextMessageEvent{
		Content:     m.Content,
		AuthorID:    m.Author.ID,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		ChannelNSFW: b.channelNSFW(s, m.ChannelID),
		Replier:     b.newChannelReplier(m.ChannelID),
	}
	if m.GuildID != "" {
		ev.AuthorPerms = b.channelPermissions(s, m.Author.ID, m.ChannelID)
		ev.BotPerms = b.channelPermissions(s, s.State.User.ID, m.ChannelID)
	}

	outcome, denial := b.dispatcher.DispatchText(context.Background(), ev)
	b.reportOutcome(ev.Replier, outcome, denial)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	actorID := ""
	actorPerms := int64(0)
	if i.Member != nil && i.Member.User != nil {
		actorID = i.Member.User.ID
		actorPerms = i.Member.Permissions
	} else if i.User != nil {
		actorID = i.User.ID
	}

	replier := b.newInteractionReplier(s, i)
	ev := dispatch.InteractionEvent{
		CommandName: data.Name,
		Options:     decodeOptions(data.Options),
		AuthorID:    actorID,
		GuildID:     i.GuildID,
		ChannelID:   i.ChannelID,
		ChannelNSFW: b.channelNSFW(s, i.ChannelID),
		AuthorPerms: actorPerms,
		BotPerms:    i.AppPermissions,
		Replier:     replier,
	}

	outcome, denial := b.dispatcher.DispatchInteraction(context.Background(), ev)
	if outcome == dispatch.OutcomeIgnored {
		// Unlike text, an ignored interaction was explicitly invoked and is
		// already pending on the client; resolve it instead of leaving it
		// hanging on the auto-ack.
		replier.dismiss("That command is not available right now.")
		return
	}
	b.reportOutcome(replier, outcome, denial)
}

// reportOutcome renders the dispatch result for the user. Ignored outcomes
// stay silent; handled ones already replied themselves.
func (b *Bot) reportOutcome(r command.Replier, outcome dispatch.Outcome, denial *dispatch.Denial) {
	switch outcome {
	case dispatch.OutcomeDenied:
		if _, err := r.Reply(denialMessage(denial)); err != nil {
			log.Println("[WARN] Failed to send denial reply:", err)
		}
	case dispatch.OutcomeFailed:
		if _, err := r.Reply("Something went wrong running that command."); err != nil {
			log.Println("[WARN] Failed to send failure reply:", err)
		}
	}
}

func denialMessage(d *dispatch.Denial) string {
	switch d.Gate {
	case dispatch.GateCooldown:
		return fmt.Sprintf("⏳ Command is on cooldown, try again in %.1fs.", d.RetryAfter.Seconds())
	case dispatch.GateRateLimit:
		return fmt.Sprintf("🚦 Slow down, try again in %.1fs.", d.RetryAfter.Seconds())
	case dispatch.GateGuildOnly:
		return "This command only works in a server."
	case dispatch.GateNSFW:
		return "This command only works in NSFW channels."
	case dispatch.GateAdmin:
		return "This command is restricted to bot admins."
	case dispatch.GateBotPermission:
		return "I'm missing a permission I need for that."
	case dispatch.GateUserPermission:
		return "You don't have the permissions for that."
	}
	return d.Detail
}

// --- helpers ---

func (b *Bot) channelNSFW(s *discordgo.Session, channelID string) bool {
	channel, err := s.State.Channel(channelID)
	if err != nil {
		channel, err = s.Channel(channelID)
		if err != nil {
			log.Println("[WARN] Failed to fetch channel:", err)
			return false
		}
	}
	return channel.NSFW
}

func (b *Bot) channelPermissions(s *discordgo.Session, userID, channelID string) int64 {
	perms, err := s.UserChannelPermissions(userID, channelID)
	if err != nil {
		log.Println("[WARN] Failed to resolve permissions:", err)
		return 0
	}
	return perms
}

func decodeOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	out := make(map[string]any, len(opts))
	for _, opt := range opts {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			out[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			out[opt.Name] = opt.IntValue()
		case discordgo.ApplicationCommandOptionBoolean:
			out[opt.Name] = opt.BoolValue()
		case discordgo.ApplicationCommandOptionUser:
			out[opt.Name] = opt.UserValue(nil).ID
		case discordgo.ApplicationCommandOptionChannel:
			out[opt.Name] = opt.ChannelValue(nil).ID
		}
	}
	return out
}
