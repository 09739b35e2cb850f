package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const checkpointConversationsSaved = "conversations_saved_at"

// LoadConversations rebuilds the conversation index from the messages table.
// Returns ErrNoSnapshot if conversations were never saved.
func (db *DB) LoadConversations() (Conversations, error) {
	if _, err := db.checkpoint(checkpointConversationsSaved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	rows, err := db.Query(`
		SELECT phone, id, from_number, to_number, body, direction, status, timestamp
		FROM messages
		ORDER BY phone, seq`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	convs := Conversations{}
	for rows.Next() {
		var (
			phone string
			m     Message
			ts    int64
		)
		if err := rows.Scan(&phone, &m.ID, &m.From, &m.To, &m.Body, &m.Direction, &m.Status, &ts); err != nil {
			return nil, err
		}
		m.Timestamp = decodeTimestamp(ts)
		convs[phone] = append(convs[phone], m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return convs, nil
}

// SaveConversations replaces every stored message with c and records the save checkpoint.
func (db *DB) SaveConversations(c Conversations) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (phone, seq, id, from_number, to_number, body, direction, status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for phone, msgs := range c {
		for seq, m := range msgs {
			if _, err := stmt.Exec(phone, seq, m.ID, m.From, m.To, m.Body, string(m.Direction), m.Status, encodeTimestamp(m.Timestamp)); err != nil {
				return fmt.Errorf("insert message %q: %w", m.ID, err)
			}
		}
	}

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		checkpointConversationsSaved, strconv.FormatInt(now, 10), now); err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	return tx.Commit()
}

func (db *DB) checkpoint(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	return value, err
}

// Message timestamps are stored as Unix nanoseconds. The zero time, which has
// no nanosecond form, is stored as 0.
func encodeTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTimestamp(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
