package dispatch

import (
	"context"
	"errors"

	"komandir/internal/command"
	"komandir/internal/observer"
)

// Outcome summarizes one dispatch so the gateway adapter can decide what,
// if anything, to tell the user. Formatting stays out of this package.
type Outcome int

const (
	// OutcomeIgnored: not prefixed, empty, or no matching command. Dropped
	// silently; expected control flow.
	OutcomeIgnored Outcome = iota
	// OutcomeDenied: an admission gate refused the invocation.
	OutcomeDenied
	// OutcomeHandled: the handler ran and returned cleanly.
	OutcomeHandled
	// OutcomeFailed: the handler errored, panicked, or timed out. Already
	// reported to the sink; the caller degrades to a generic failure reply.
	OutcomeFailed
)

// Dispatcher ties the pipeline together: Normalizer → Registry → Controller
// → Executor. One dispatcher serves the whole shard; invocations may overlap
// during handler execution, which is why the throttle store is atomic.
type Dispatcher struct {
	Registry   *command.Registry
	Normalizer *Normalizer
	Controller *Controller
	Executor   *Executor
	Sink       observer.Sink
	ShardID    int
}

// DispatchText runs the pipeline for a raw text message.
func (d *Dispatcher) DispatchText(ctx context.Context, ev TextMessageEvent) (Outcome, *Denial) {
	inv, err := d.Normalizer.NormalizeText(ev)
	if err != nil {
		return OutcomeIgnored, nil
	}
	return d.dispatch(ctx, inv)
}

// DispatchInteraction runs the pipeline for a slash interaction.
func (d *Dispatcher) DispatchInteraction(ctx context.Context, ev InteractionEvent) (Outcome, *Denial) {
	inv := d.Normalizer.NormalizeInteraction(ev)
	return d.dispatch(ctx, inv)
}

func (d *Dispatcher) dispatch(ctx context.Context, inv command.Invocation) (Outcome, *Denial) {
	spec, err := d.Registry.Resolve(inv.CommandName())
	if err != nil {
		if !errors.Is(err, command.ErrNotFound) {
			d.Sink.LogError(observer.Context{Command: inv.CommandName(), ShardID: d.ShardID}, err)
		}
		return OutcomeIgnored, nil
	}

	// Surface restrictions: a slash-only command is unreachable by text,
	// and a command never registered as slash cannot arrive as one.
	if spec.Flags.SlashOnly && inv.Kind() == command.TextKind {
		return OutcomeIgnored, nil
	}
	if !spec.Flags.SlashEnabled && inv.Kind() == command.InteractionKind {
		return OutcomeIgnored, nil
	}

	if denial := d.Controller.Admit(inv, spec); denial != nil {
		return OutcomeDenied, denial
	}

	d.Sink.LogCommandUse(observer.Context{
		Command:   spec.Name,
		ActorID:   inv.ActorID(),
		GuildID:   inv.GuildID(),
		ChannelID: inv.ChannelID(),
		Kind:      inv.Kind().String(),
		ShardID:   d.ShardID,
	})

	if err := d.Executor.Execute(ctx, inv, spec); err != nil {
		return OutcomeFailed, nil
	}
	return OutcomeHandled, nil
}
