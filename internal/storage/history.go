package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"komandir/internal/observer"
)

const commandHistoryLimit = 20

// CommandRecord is one command-use audit entry for a guild.
type CommandRecord struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Command   string    `json:"command"`
	Kind      string    `json:"kind"`
	Datetime  time.Time `json:"datetime"`
}

func historyKey(guildID string) string {
	return "history:" + guildID
}

// AppendCommandHistory records a command use for a guild, keeping the list
// bounded to the most recent entries.
func (s *Storage) AppendCommandHistory(guildID string, rec CommandRecord) error {
	list, err := s.FetchCommandHistory(guildID)
	if err != nil {
		return err
	}
	list = append(list, rec)
	if len(list) > commandHistoryLimit {
		list = list[len(list)-commandHistoryLimit:]
	}
	s.ds.Set(historyKey(guildID), list)
	return nil
}

// FetchCommandHistory returns the recorded command uses for a guild.
func (s *Storage) FetchCommandHistory(guildID string) ([]CommandRecord, error) {
	raw, ok := s.ds.Get(historyKey(guildID))
	if !ok {
		return nil, nil
	}

	// Values loaded from disk come back as []any of maps; values set in
	// this process are already typed. Normalize through JSON.
	if list, ok := raw.([]CommandRecord); ok {
		return list, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("error marshalling history: %w", err)
	}
	var list []CommandRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("error unmarshalling history: %w", err)
	}
	return list, nil
}

// HistorySink is an observer.Sink that persists command uses as audit
// records. Errors and lifecycle events pass through untouched.
type HistorySink struct {
	Store *Storage
}

func (h HistorySink) LogCommandUse(ctx observer.Context) {
	if ctx.GuildID == "" {
		return
	}
	_ = h.Store.AppendCommandHistory(ctx.GuildID, CommandRecord{
		ChannelID: ctx.ChannelID,
		UserID:    ctx.ActorID,
		Command:   ctx.Command,
		Kind:      ctx.Kind,
		Datetime:  time.Now(),
	})
}

func (HistorySink) LogError(observer.Context, error)  {}
func (HistorySink) LogGuildEvent(string, string)      {}
func (HistorySink) LogShardEvent(int, string, string) {}
