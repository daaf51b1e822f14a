package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"komandir/internal/observer"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeyValueRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	_, ok := s.Get("missing")
	assert.False(t, ok)
	assert.False(t, s.Has("missing"))

	s.Set("greeting", "hello")
	v, ok := s.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.True(t, s.Has("greeting"))

	s.Delete("greeting")
	assert.False(t, s.Has("greeting"))
}

func TestAddSubtract(t *testing.T) {
	s := newTestStorage(t)

	n, err := s.Add("views", 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), n)

	n, err = s.Add("views", 2.5)
	require.NoError(t, err)
	assert.Equal(t, 3.5, n)

	n, err = s.Subtract("views", 0.5)
	require.NoError(t, err)
	assert.Equal(t, float64(3), n)
}

func TestAddRejectsNonNumeric(t *testing.T) {
	s := newTestStorage(t)

	s.Set("name", "domme")
	_, err := s.Add("name", 1)
	assert.Error(t, err)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	s, err := New(path)
	require.NoError(t, err)
	s.Set("k", "v")
	require.NoError(t, s.Close())

	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()

	v, ok := s2.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCommandHistoryBounded(t *testing.T) {
	s := newTestStorage(t)

	for i := 0; i < commandHistoryLimit+5; i++ {
		require.NoError(t, s.AppendCommandHistory("g1", CommandRecord{
			ChannelID: "c1",
			UserID:    "u1",
			Command:   fmt.Sprintf("cmd%d", i),
			Kind:      "text",
			Datetime:  time.Now(),
		}))
	}

	list, err := s.FetchCommandHistory("g1")
	require.NoError(t, err)
	require.Len(t, list, commandHistoryLimit)
	assert.Equal(t, "cmd5", list[0].Command, "oldest entries are evicted")
	assert.Equal(t, fmt.Sprintf("cmd%d", commandHistoryLimit+4), list[len(list)-1].Command)
}

func TestCommandHistoryPerGuild(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.AppendCommandHistory("g1", CommandRecord{Command: "ping"}))
	require.NoError(t, s.AppendCommandHistory("g2", CommandRecord{Command: "help"}))

	g1, err := s.FetchCommandHistory("g1")
	require.NoError(t, err)
	require.Len(t, g1, 1)
	assert.Equal(t, "ping", g1[0].Command)

	g2, err := s.FetchCommandHistory("g2")
	require.NoError(t, err)
	require.Len(t, g2, 1)
	assert.Equal(t, "help", g2[0].Command)
}

func TestCommandHistorySurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendCommandHistory("g1", CommandRecord{Command: "ping", UserID: "u1"}))
	require.NoError(t, s.Close())

	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()

	// Disk round-trip turns the list into []any of maps; Fetch normalizes.
	list, err := s2.FetchCommandHistory("g1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ping", list[0].Command)
	assert.Equal(t, "u1", list[0].UserID)
}

func TestHistorySinkSkipsDMs(t *testing.T) {
	s := newTestStorage(t)
	sink := HistorySink{Store: s}

	sink.LogCommandUse(observer.Context{Command: "ping", ActorID: "u1"})
	list, err := s.FetchCommandHistory("")
	require.NoError(t, err)
	assert.Empty(t, list)

	sink.LogCommandUse(observer.Context{Command: "ping", ActorID: "u1", GuildID: "g1", ChannelID: "c1", Kind: "text"})
	list, err = s.FetchCommandHistory("g1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u1", list[0].UserID)
}
