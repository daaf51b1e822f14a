// Package dispatch is the command pipeline: normalize a raw event into an
// Invocation, resolve it against the registry, run the admission chain, and
// execute the handler with fault isolation. Handler failures are reported
// to the observability sink and never stall the loop.
package dispatch

import (
	"strings"

	"komandir/internal/command"
)

// TextMessageEvent is the transport-neutral shape of a prefixed text
// message, filled in by a gateway adapter.
type TextMessageEvent struct {
	Content     string
	AuthorID    string
	GuildID     string
	ChannelID   string
	ChannelNSFW bool
	AuthorPerms int64
	BotPerms    int64
	Replier     command.Replier
}

// InteractionEvent is the transport-neutral shape of a slash interaction.
// CommandName is already canonical; interactions never use aliases.
type InteractionEvent struct {
	CommandName string
	Options     map[string]any
	AuthorID    string
	GuildID     string
	ChannelID   string
	ChannelNSFW bool
	AuthorPerms int64
	BotPerms    int64
	Replier     command.Replier
}

// Normalizer is the context adapter: it turns raw events into the canonical
// Invocation so nothing downstream branches on the origin surface.
type Normalizer struct {
	Prefix string
}

// NormalizeText strips the prefix and tokenizes the remainder. The first
// token, matched case-insensitively later at resolve time, is the candidate
// command name or alias.
func (n *Normalizer) NormalizeText(ev TextMessageEvent) (*command.TextInvocation, error) {
	if n.Prefix == "" || !strings.HasPrefix(ev.Content, n.Prefix) {
		return nil, ErrNotPrefixed
	}
	tokens := Tokenize(strings.TrimPrefix(ev.Content, n.Prefix))
	if len(tokens) == 0 {
		return nil, ErrEmptyCommand
	}
	return &command.TextInvocation{
		Actor:    ev.AuthorID,
		Guild:    ev.GuildID,
		Channel:  ev.ChannelID,
		NSFW:     ev.ChannelNSFW,
		Command:  strings.ToLower(tokens[0]),
		Args:     tokens[1:],
		Perms:    ev.AuthorPerms,
		BotPerms: ev.BotPerms,
		Sink:     ev.Replier,
	}, nil
}

// NormalizeInteraction wraps an interaction. Options are already typed, so
// this is a straight mapping.
func (n *Normalizer) NormalizeInteraction(ev InteractionEvent) *command.InteractionInvocation {
	return &command.InteractionInvocation{
		Actor:    ev.AuthorID,
		Guild:    ev.GuildID,
		Channel:  ev.ChannelID,
		NSFW:     ev.ChannelNSFW,
		Command:  ev.CommandName,
		Options:  ev.Options,
		Perms:    ev.AuthorPerms,
		BotPerms: ev.BotPerms,
		Sink:     ev.Replier,
	}
}

// Tokenize splits on whitespace, keeping double- or single-quoted segments
// as one token. Quotes are stripped; an unterminated quote runs to the end
// of input.
func Tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	flush()
	return tokens
}
