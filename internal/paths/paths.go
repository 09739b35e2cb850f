// Package paths lays out the files smsdash keeps under its data directory.
package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.smsdash.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".smsdash")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Layout resolves file names inside one data directory.
type Layout struct {
	Dir string
}

// New returns the layout rooted at dir, or at BaseDir when dir is empty.
func New(dir string) Layout {
	if dir == "" {
		dir = BaseDir()
	}
	return Layout{Dir: dir}
}

// Contacts returns the contact mirror path.
func (l Layout) Contacts() string { return filepath.Join(l.Dir, "customers.json") }

// Conversations returns the conversation snapshot path.
func (l Layout) Conversations() string { return filepath.Join(l.Dir, "conversations.json") }

// Settings returns the operator settings path.
func (l Layout) Settings() string { return filepath.Join(l.Dir, "settings.json") }

// Database returns the SQLite mirror path.
func (l Layout) Database() string { return filepath.Join(l.Dir, "smsdash.db") }

// LogDir returns the log directory.
func (l Layout) LogDir() string { return filepath.Join(l.Dir, "logs") }

// LogFile returns the daemon log file path.
func (l Layout) LogFile() string { return filepath.Join(l.LogDir(), "smsdashd.log") }

// Resolve returns p unchanged when absolute, otherwise joined onto the data dir.
func (l Layout) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.Dir, p)
}

// EnsureDir creates the data directory tree with owner-only permissions.
func (l Layout) EnsureDir() error {
	for _, d := range []string{l.Dir, l.LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
