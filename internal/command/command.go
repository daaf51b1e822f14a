// Package command defines the command model: immutable specs, the registry
// that indexes them by name and alias, and the canonical Invocation passed
// to handlers. It knows nothing about Discord wire types; adapters translate
// transport events into these shapes.
package command

import (
	"context"
	"time"
)

// OptionType enumerates the typed option descriptors a spec can declare.
type OptionType int

const (
	OptionString OptionType = iota
	OptionInteger
	OptionBoolean
	OptionUser
	OptionChannel
)

// Option describes one typed argument of a slash invocation.
type Option struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
}

// Flags are the behavioral switches of a command.
type Flags struct {
	NSFWOnly     bool
	RequireAdmin bool
	GuildOnly    bool
	SlashEnabled bool
	SlashOnly    bool
}

// Handler executes the command. It is invoked exactly once per admitted
// invocation; the dispatcher never retries.
type Handler func(ctx context.Context, inv Invocation) error

// Spec is an immutable command definition. Specs are built by factories at
// startup and never mutated after registration; a reload replaces the whole
// registry table instead.
type Spec struct {
	Name        string
	Aliases     []string
	Category    string
	Description string
	Flags       Flags

	// Cooldown is the per-user rearm delay. Zero means no cooldown.
	Cooldown time.Duration

	// BotPermissions and UserPermissions are permission bits the bot and
	// the actor must all hold in the invoking channel.
	BotPermissions  []int64
	UserPermissions []int64

	Options []Option
	Handler Handler
}

// Factory yields a fresh Spec. The startup registration list is a plain
// slice of factories; there is no reflective discovery.
type Factory func() *Spec
