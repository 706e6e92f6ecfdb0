package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/giygas/nhi-hospitals/entities"
	"github.com/giygas/nhi-hospitals/logging"
)

// JSONHistoryStore keeps the download history as a JSON object on disk
type JSONHistoryStore struct {
	Path string
}

// NewJSONHistoryStore creates a store backed by path
func NewJSONHistoryStore(path string) *JSONHistoryStore {
	return &JSONHistoryStore{Path: path}
}

// Load returns the saved history. A missing or unreadable file yields an empty history.
func (s *JSONHistoryStore) Load() entities.DownloadHistory {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to read download history, starting empty", "path", s.Path, "error", err)
		}
		return entities.DownloadHistory{}
	}

	var history entities.DownloadHistory
	if err := json.Unmarshal(data, &history); err != nil || history == nil {
		logging.Warn("Download history is not a JSON object, starting empty", "path", s.Path, "error", err)
		return entities.DownloadHistory{}
	}
	return history
}

// Save writes the history with 4 space indentation and flushes it to disk
func (s *JSONHistoryStore) Save(history entities.DownloadHistory) (err error) {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to create history file %s: %w", s.Path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close history file: %w", cerr)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(history); err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush history file: %w", err)
	}
	return nil
}
