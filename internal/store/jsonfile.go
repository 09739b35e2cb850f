package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// JSONMirror keeps contacts and conversations as two JSON documents.
type JSONMirror struct {
	mu                sync.Mutex
	contactsPath      string
	conversationsPath string
}

// NewJSONMirror returns a mirror writing to the given files. Parent directories are created on save.
func NewJSONMirror(contactsPath, conversationsPath string) *JSONMirror {
	return &JSONMirror{
		contactsPath:      contactsPath,
		conversationsPath: conversationsPath,
	}
}

// LoadContacts reads the contacts document. A missing file yields an empty map.
func (m *JSONMirror) LoadContacts() (Contacts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	contacts := Contacts{}
	err := readJSON(m.contactsPath, &contacts)
	if errors.Is(err, fs.ErrNotExist) {
		return Contacts{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	return contacts, nil
}

// SaveContacts rewrites the contacts document.
func (m *JSONMirror) SaveContacts(c Contacts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := writeJSON(m.contactsPath, c); err != nil {
		return fmt.Errorf("save contacts: %w", err)
	}
	return nil
}

// LoadConversations reads the conversations document.
// Returns ErrNoSnapshot when it was never written.
func (m *JSONMirror) LoadConversations() (Conversations, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	convs := Conversations{}
	err := readJSON(m.conversationsPath, &convs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	return convs, nil
}

// SaveConversations rewrites the conversations document.
func (m *JSONMirror) SaveConversations(c Conversations) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := writeJSON(m.conversationsPath, c); err != nil {
		return fmt.Errorf("save conversations: %w", err)
	}
	return nil
}

// Close is a no-op; files are not held open between calls.
func (m *JSONMirror) Close() error { return nil }

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON writes through a temp file and rename so readers never see a torn document.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
