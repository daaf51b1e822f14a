package discord

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"komandir/internal/command"
)

// ackDeadline is how long an interaction may sit unanswered before the
// replier acknowledges it silently. The platform allows 3 seconds; the
// margin covers REST latency.
const ackDeadline = 2 * time.Second

// originalHandle addresses the initial interaction response.
const originalHandle command.Handle = "@original"

// channelReplier sends plain channel messages for text invocations.
type channelReplier struct {
	s         *discordgo.Session
	channelID string
	wait      func()
}

func (b *Bot) newChannelReplier(channelID string) *channelReplier {
	return &channelReplier{s: b.dg, channelID: channelID, wait: b.waitSend}
}

func (r *channelReplier) Reply(content string) (command.Handle, error) {
	r.wait()
	msg, err := r.s.ChannelMessageSend(r.channelID, content)
	if err != nil {
		return "", err
	}
	return command.Handle(msg.ID), nil
}

func (r *channelReplier) Edit(h command.Handle, content string) error {
	r.wait()
	_, err := r.s.ChannelMessageEdit(r.channelID, string(h), content)
	return err
}

func (r *channelReplier) Delete(h command.Handle) error {
	r.wait()
	return r.s.ChannelMessageDelete(r.channelID, string(h))
}

// interactionAPI is the slice of the session the interaction replier
// drives. *discordgo.Session satisfies it.
type interactionAPI interface {
	InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error
	InteractionResponseEdit(*discordgo.Interaction, *discordgo.WebhookEdit, ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(*discordgo.Interaction, ...discordgo.RequestOption) error
	FollowupMessageCreate(*discordgo.Interaction, bool, *discordgo.WebhookParams, ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageEdit(*discordgo.Interaction, string, *discordgo.WebhookEdit, ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageDelete(*discordgo.Interaction, string, ...discordgo.RequestOption) error
}

// interactionReplier collapses the respond/followup split behind the
// uniform contract. The first Reply is the acknowledgment; later Replies
// are follow-ups. If the handler has not replied by ackDeadline, the
// replier defers the response itself so the platform does not mark the
// invocation as failed.
type interactionReplier struct {
	s    interactionAPI
	ev   *discordgo.InteractionCreate
	wait func()

	mu       sync.Mutex
	acked    bool // an interaction response exists
	deferred bool // the response is a bare deferral awaiting content
	ackTimer *time.Timer
}

func (b *Bot) newInteractionReplier(s *discordgo.Session, ev *discordgo.InteractionCreate) *interactionReplier {
	r := &interactionReplier{s: s, ev: ev, wait: b.waitSend}
	r.ackTimer = time.AfterFunc(ackDeadline, r.autoAck)
	return r
}

// autoAck fires when the handler stays silent past the deadline.
func (r *interactionReplier) autoAck() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acked {
		return
	}
	err := r.s.InteractionRespond(r.ev.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		log.Println("[WARN] Failed to auto-acknowledge interaction:", err)
		return
	}
	r.acked = true
	r.deferred = true
}

func (r *interactionReplier) Reply(content string) (command.Handle, error) {
	r.wait()
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.acked {
		r.ackTimer.Stop()
		err := r.s.InteractionRespond(r.ev.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: content},
		})
		if err != nil {
			return "", err
		}
		r.acked = true
		return originalHandle, nil
	}

	if r.deferred {
		// The auto-ack already reserved the original response; fill it in.
		_, err := r.s.InteractionResponseEdit(r.ev.Interaction, &discordgo.WebhookEdit{Content: &content})
		if err != nil {
			return "", err
		}
		r.deferred = false
		return originalHandle, nil
	}

	msg, err := r.s.FollowupMessageCreate(r.ev.Interaction, true, &discordgo.WebhookParams{Content: content})
	if err != nil {
		return "", err
	}
	return command.Handle(msg.ID), nil
}

func (r *interactionReplier) Edit(h command.Handle, content string) error {
	r.wait()
	if h == originalHandle {
		_, err := r.s.InteractionResponseEdit(r.ev.Interaction, &discordgo.WebhookEdit{Content: &content})
		return err
	}
	_, err := r.s.FollowupMessageEdit(r.ev.Interaction, string(h), &discordgo.WebhookEdit{Content: &content})
	return err
}

func (r *interactionReplier) Delete(h command.Handle) error {
	r.wait()
	if h == originalHandle {
		return r.s.InteractionResponseDelete(r.ev.Interaction)
	}
	return r.s.FollowupMessageDelete(r.ev.Interaction, string(h))
}

// dismiss resolves an interaction that will never receive a handler reply,
// so the client does not sit on a pending response forever. Before the ack
// it answers with an ephemeral notice; after an auto-ack it fills the
// deferred response with the notice instead.
func (r *interactionReplier) dismiss(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ackTimer.Stop()

	if !r.acked {
		err := r.s.InteractionRespond(r.ev.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			log.Println("[WARN] Failed to dismiss interaction:", err)
			return
		}
		r.acked = true
		return
	}
	if r.deferred {
		if _, err := r.s.InteractionResponseEdit(r.ev.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
			log.Println("[WARN] Failed to dismiss interaction:", err)
			return
		}
		r.deferred = false
	}
}

// waitSend applies the shared outbound limiter. A bounded wait keeps a
// saturated limiter from wedging a handler forever.
func (b *Bot) waitSend() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.sendLim.Wait(ctx); err != nil {
		log.Println("[WARN] Send limiter wait aborted:", err)
	}
}
