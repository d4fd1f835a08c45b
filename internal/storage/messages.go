package storage

import (
	"context"
	"encoding/json"
	"time"
)

// MessageLog is the JSON shape appended to message_logs. Edits reuse the same
// table with OldMessage/NewMessage set instead of Message.
type MessageLog struct {
	User        string   `json:"user"`
	Message     string   `json:"message,omitempty"`
	OldMessage  string   `json:"old_message,omitempty"`
	NewMessage  string   `json:"new_message,omitempty"`
	Time        string   `json:"time"`
	Attachments []string `json:"attachments,omitempty"`
	Guild       string   `json:"guild"`
	Channel     string   `json:"channel"`
}

func (s *Store) AddMessageLog(ctx context.Context, entry MessageLog) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	query := s.db.Rebind(`INSERT INTO message_logs (encoded_message, created_at) VALUES (?, ?)`)
	_, err = s.db.ExecContext(ctx, query, string(encoded), time.Now().Unix())
	return err
}

// ListMessageLogs returns the most recent entries, newest first. Entries that
// no longer decode are skipped rather than failing the whole read.
func (s *Store) ListMessageLogs(ctx context.Context, limit int) ([]MessageLog, error) {
	query := s.db.Rebind(`
		SELECT encoded_message FROM message_logs
		ORDER BY id DESC
		LIMIT ?
	`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []MessageLog
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, err
		}
		var entry MessageLog
		if err := json.Unmarshal([]byte(encoded), &entry); err != nil {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) DeleteAllMessageLogs(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM message_logs`)
	return err
}
