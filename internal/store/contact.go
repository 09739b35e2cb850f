package store

import (
	"fmt"
	"time"
)

// LoadContacts returns every stored contact.
func (db *DB) LoadContacts() (Contacts, error) {
	rows, err := db.Query(`SELECT phone, name FROM contacts`)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contacts := Contacts{}
	for rows.Next() {
		var phone, name string
		if err := rows.Scan(&phone, &name); err != nil {
			return nil, err
		}
		contacts[phone] = name
	}
	return contacts, rows.Err()
}

// SaveContacts replaces the contacts table with c in a single transaction.
func (db *DB) SaveContacts(c Contacts) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM contacts`); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}
	now := time.Now().UnixMilli()
	for phone, name := range c {
		if _, err := tx.Exec(`INSERT INTO contacts (phone, name, updated_at) VALUES (?, ?, ?)`, phone, name, now); err != nil {
			return fmt.Errorf("insert contact %q: %w", phone, err)
		}
	}
	return tx.Commit()
}
