// Package observer is the observability sink for the dispatch core. The
// sink is fire-and-forget: events go into a buffered channel drained by a
// single goroutine, and when the buffer is full events are dropped rather
// than ever blocking dispatch.
package observer

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Context identifies the invocation an event belongs to.
type Context struct {
	Command   string
	ActorID   string
	GuildID   string
	ChannelID string
	Kind      string
	ShardID   int
}

// Sink receives dispatch events. Implementations must never block the
// caller; expected control flow (parse failures, unknown commands, gate
// denials) never reaches a sink as a failure.
type Sink interface {
	LogError(ctx Context, err error)
	LogCommandUse(ctx Context)
	LogGuildEvent(kind, guildID string)
	LogShardEvent(shardID int, from, to string)
}

type eventKind int

const (
	evError eventKind = iota
	evCommandUse
	evGuild
	evShard
)

type event struct {
	kind    eventKind
	ctx     Context
	err     error
	label   string
	guildID string
	shardID int
	from    string
	to      string
}

// Config controls where the logger writes.
type Config struct {
	// Path enables rotating file output when non-empty.
	Path string
	// Console enables human-readable stderr output.
	Console bool
	// Buffer is the channel capacity; zero means a sane default.
	Buffer int
}

// Logger is the zerolog-backed Sink.
type Logger struct {
	log     zerolog.Logger
	ch      chan event
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// NewLogger builds a Logger from config and starts its drain goroutine.
func NewLogger(cfg Config) *Logger {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if cfg.Path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 256
	}

	l := &Logger{
		log:  zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger(),
		ch:   make(chan event, buffer),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.drain()
	return l
}

// Close flushes the buffer and stops the drain goroutine. The event channel
// itself is never closed: handlers may still be in flight when shutdown
// starts, and their late sink calls are counted as dropped instead of
// panicking the process.
func (l *Logger) Close() {
	l.once.Do(func() {
		close(l.quit)
		<-l.done
		if n := l.dropped.Load(); n > 0 {
			l.log.Warn().Int64("dropped", n).Msg("observer events dropped")
		}
	})
}

// Dropped reports how many events were discarded because the buffer was full.
func (l *Logger) Dropped() int64 { return l.dropped.Load() }

func (l *Logger) LogError(ctx Context, err error) {
	l.push(event{kind: evError, ctx: ctx, err: err})
}

func (l *Logger) LogCommandUse(ctx Context) {
	l.push(event{kind: evCommandUse, ctx: ctx})
}

func (l *Logger) LogGuildEvent(kind, guildID string) {
	l.push(event{kind: evGuild, label: kind, guildID: guildID})
}

func (l *Logger) LogShardEvent(shardID int, from, to string) {
	l.push(event{kind: evShard, shardID: shardID, from: from, to: to})
}

func (l *Logger) push(ev event) {
	select {
	case <-l.quit:
		l.dropped.Add(1)
		return
	default:
	}
	select {
	case l.ch <- ev:
	default:
		l.dropped.Add(1)
	}
}

func (l *Logger) drain() {
	defer close(l.done)
	for {
		select {
		case ev := <-l.ch:
			l.write(ev)
		case <-l.quit:
			for {
				select {
				case ev := <-l.ch:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(ev event) {
	switch ev.kind {
	case evError:
		l.log.Error().
			Str("command", ev.ctx.Command).
			Str("actor", ev.ctx.ActorID).
			Str("guild", ev.ctx.GuildID).
			Str("channel", ev.ctx.ChannelID).
			Str("kind", ev.ctx.Kind).
			Int("shard", ev.ctx.ShardID).
			Err(ev.err).
			Msg("command failed")
	case evCommandUse:
		l.log.Info().
			Str("command", ev.ctx.Command).
			Str("actor", ev.ctx.ActorID).
			Str("guild", ev.ctx.GuildID).
			Str("channel", ev.ctx.ChannelID).
			Str("kind", ev.ctx.Kind).
			Int("shard", ev.ctx.ShardID).
			Msg("command used")
	case evGuild:
		l.log.Info().
			Str("event", ev.label).
			Str("guild", ev.guildID).
			Msg("guild event")
	case evShard:
		l.log.Info().
			Int("shard", ev.shardID).
			Str("from", ev.from).
			Str("to", ev.to).
			Msg("shard state change")
	}
}

// Nop is a Sink that discards everything. Used in tests and as a safe default.
type Nop struct{}

func (Nop) LogError(Context, error)           {}
func (Nop) LogCommandUse(Context)             {}
func (Nop) LogGuildEvent(string, string)      {}
func (Nop) LogShardEvent(int, string, string) {}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) LogError(ctx Context, err error) {
	for _, s := range m {
		s.LogError(ctx, err)
	}
}

func (m Multi) LogCommandUse(ctx Context) {
	for _, s := range m {
		s.LogCommandUse(ctx)
	}
}

func (m Multi) LogGuildEvent(kind, guildID string) {
	for _, s := range m {
		s.LogGuildEvent(kind, guildID)
	}
}

func (m Multi) LogShardEvent(shardID int, from, to string) {
	for _, s := range m {
		s.LogShardEvent(shardID, from, to)
	}
}
