package command

import "strconv"

// Kind tags the two invocation surfaces.
type Kind int

const (
	TextKind Kind = iota
	InteractionKind
)

func (k Kind) String() string {
	if k == InteractionKind {
		return "interaction"
	}
	return "text"
}

// Handle identifies a sent reply so it can be edited or deleted later.
type Handle string

// Replier is the uniform reply-sink contract both surfaces expose. For
// interactions the first Reply doubles as the acknowledgment and later
// calls become follow-ups; the adapter hides that behind these three
// operations.
type Replier interface {
	Reply(content string) (Handle, error)
	Edit(h Handle, content string) error
	Delete(h Handle) error
}

// Invocation is the canonical representation of one command attempt,
// regardless of origin surface. Downstream components (gates, executor)
// never branch on the concrete type; everything they need is here.
type Invocation interface {
	Kind() Kind
	ActorID() string
	// GuildID is empty for direct messages.
	GuildID() string
	ChannelID() string
	ChannelNSFW() bool
	// CommandName is the resolved canonical name or alias as typed.
	CommandName() string
	// ActorPermissions and BotPermissions are the permission bit sets the
	// adapter resolved for the invoking channel.
	ActorPermissions() int64
	BotPermissions() int64
	Replier() Replier
}

// TextInvocation is a prefixed text message after normalization.
type TextInvocation struct {
	Actor    string
	Guild    string
	Channel  string
	NSFW     bool
	Command  string
	Args     []string
	Perms    int64
	BotPerms int64
	Sink     Replier
}

func (t *TextInvocation) Kind() Kind              { return TextKind }
func (t *TextInvocation) ActorID() string         { return t.Actor }
func (t *TextInvocation) GuildID() string         { return t.Guild }
func (t *TextInvocation) ChannelID() string       { return t.Channel }
func (t *TextInvocation) ChannelNSFW() bool       { return t.NSFW }
func (t *TextInvocation) CommandName() string     { return t.Command }
func (t *TextInvocation) ActorPermissions() int64 { return t.Perms }
func (t *TextInvocation) BotPermissions() int64   { return t.BotPerms }
func (t *TextInvocation) Replier() Replier        { return t.Sink }

// InteractionInvocation is a structured slash interaction. Options arrive
// already typed; there is nothing to tokenize.
type InteractionInvocation struct {
	Actor    string
	Guild    string
	Channel  string
	NSFW     bool
	Command  string
	Options  map[string]any
	Perms    int64
	BotPerms int64
	Sink     Replier
}

func (i *InteractionInvocation) Kind() Kind              { return InteractionKind }
func (i *InteractionInvocation) ActorID() string         { return i.Actor }
func (i *InteractionInvocation) GuildID() string         { return i.Guild }
func (i *InteractionInvocation) ChannelID() string       { return i.Channel }
func (i *InteractionInvocation) ChannelNSFW() bool       { return i.NSFW }
func (i *InteractionInvocation) CommandName() string     { return i.Command }
func (i *InteractionInvocation) ActorPermissions() int64 { return i.Perms }
func (i *InteractionInvocation) BotPermissions() int64   { return i.BotPerms }
func (i *InteractionInvocation) Replier() Replier        { return i.Sink }

// StringOption returns a string option by name, or "" when absent.
func (i *InteractionInvocation) StringOption(name string) string {
	if v, ok := i.Options[name].(string); ok {
		return v
	}
	return ""
}

// IntOption returns an integer option by name, or 0 when absent.
func (i *InteractionInvocation) IntOption(name string) int64 {
	if v, ok := i.Options[name].(int64); ok {
		return v
	}
	return 0
}

// BoolOption returns a boolean option by name, or false when absent.
func (i *InteractionInvocation) BoolOption(name string) bool {
	if v, ok := i.Options[name].(bool); ok {
		return v
	}
	return false
}

// Arguments flattens either surface into a string slice: text args as-is,
// interaction options formatted in the order the Spec declares them.
func Arguments(inv Invocation, spec *Spec) []string {
	switch v := inv.(type) {
	case *TextInvocation:
		return v.Args
	case *InteractionInvocation:
		args := make([]string, 0, len(v.Options))
		for _, opt := range spec.Options {
			raw, ok := v.Options[opt.Name]
			if !ok {
				continue
			}
			args = append(args, formatOption(raw))
		}
		return args
	}
	return nil
}

func formatOption(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
