package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"vigil/enforce"
)

type fileState struct {
	Days    map[string]enforce.DayRecord `json:"days"`
	History []enforce.HistoryItem        `json:"history"`
	Proofs  map[string][]byte            `json:"proofs"`
	State   *enforce.State               `json:"state,omitempty"`
}

// JSONStore keeps everything in one file, rewritten atomically on each
// mutation. Suited to inspection and small installs; sqlite is the default.
type JSONStore struct {
	filePath string
	mu       sync.RWMutex
	state    fileState
}

func NewJSONStore(filePath string) (*JSONStore, error) {
	s := &JSONStore{
		filePath: filePath,
		state: fileState{
			Days:   make(map[string]enforce.DayRecord),
			Proofs: make(map[string][]byte),
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) SaveDay(d enforce.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Days[d.Date] = d
	return s.persistLocked()
}

func (s *JSONStore) LoadDay(date string) (enforce.DayRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.Days[date]
	return d, ok, nil
}

func (s *JSONStore) AppendHistory(item enforce.HistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.History = append(s.state.History, item)
	return s.persistLocked()
}

func (s *JSONStore) History() ([]enforce.HistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Stored oldest-first, exposed newest-first.
	out := make([]enforce.HistoryItem, len(s.state.History))
	for i, item := range s.state.History {
		out[len(out)-1-i] = item
	}
	return out, nil
}

func (s *JSONStore) SaveProof(id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Proofs[id] = data
	return s.persistLocked()
}

func (s *JSONStore) LoadProof(id string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.state.Proofs[id]
	return data, ok, nil
}

func (s *JSONStore) SaveState(st enforce.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.State = &st
	return s.persistLocked()
}

func (s *JSONStore) LoadState() (enforce.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.State == nil {
		return enforce.State{}, false, nil
	}
	return *s.state.State, true, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Days == nil {
		state.Days = make(map[string]enforce.DayRecord)
	}
	if state.Proofs == nil {
		state.Proofs = make(map[string][]byte)
	}
	s.state = state
	return nil
}

func (s *JSONStore) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.filePath)
}
