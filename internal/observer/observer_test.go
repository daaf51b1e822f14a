package observer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkCallsAfterCloseAreDropped(t *testing.T) {
	l := NewLogger(Config{Path: filepath.Join(t.TempDir(), "bot.log")})
	l.Close()

	// Handlers can still be mid-dispatch when shutdown starts; their late
	// sink calls must be absorbed, never crash.
	l.LogError(Context{Command: "ping"}, errors.New("late"))
	l.LogCommandUse(Context{Command: "ping"})
	l.LogGuildEvent("guild_create", "g1")
	l.LogShardEvent(0, "ready", "disconnected")

	assert.EqualValues(t, 4, l.Dropped())
}

func TestCloseIsIdempotent(t *testing.T) {
	l := NewLogger(Config{Path: filepath.Join(t.TempDir(), "bot.log")})
	l.Close()
	l.Close()
}

func TestCloseFlushesBufferedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	l := NewLogger(Config{Path: path})

	l.LogCommandUse(Context{Command: "ping", ActorID: "u1", Kind: "text"})
	l.LogError(Context{Command: "boom"}, errors.New("kaboom"))
	l.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "command used")
	assert.Contains(t, string(data), "command failed")
	assert.Contains(t, string(data), "kaboom")
}
