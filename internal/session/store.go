package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const fileName = "session.json"

// Store persists a playlist's state to session.json
type Store struct {
	mu       sync.Mutex
	filePath string
	playlist *Playlist
}

// NewStore creates a store in configDir for playlist
func NewStore(configDir string, playlist *Playlist) *Store {
	return &Store{
		filePath: filepath.Join(configDir, fileName),
		playlist: playlist,
	}
}

// Load restores the saved state. A missing file leaves the defaults.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read session file")
	}

	state := State{Volume: DefaultVolume}
	if err := json.Unmarshal(data, &state); err != nil {
		return errors.Wrap(err, "parse session file")
	}

	s.playlist.Restore(state)
	return nil
}

// Save writes the current state
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.playlist.Snapshot(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return errors.Wrap(err, "create session directory")
	}

	// replace atomically
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(err, "write session file")
	}
	return errors.Wrap(os.Rename(tmp, s.filePath), "replace session file")
}

// GetFilePath returns the path of the session file
func (s *Store) GetFilePath() string {
	return s.filePath
}
