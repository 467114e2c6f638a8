// Package store persists day records, scored history, proofs, and the
// cross-day scheduler state. Two engines share one interface; the sqlite
// engine is the default, the json engine keeps everything in a single
// human-readable file.
package store

import (
	"errors"
	"strings"

	"vigil/enforce"
)

type Store interface {
	LoadDay(date string) (enforce.DayRecord, bool, error)
	SaveDay(d enforce.DayRecord) error

	AppendHistory(item enforce.HistoryItem) error
	// History returns archived days newest-first.
	History() ([]enforce.HistoryItem, error)

	SaveProof(id string, data []byte) error
	LoadProof(id string) ([]byte, bool, error)

	LoadState() (enforce.State, bool, error)
	SaveState(s enforce.State) error

	Close() error
}

const (
	EngineSQLite = "sqlite"
	EngineJSON   = "json"
)

// NewByEngine opens a store of the requested engine at path. An empty
// engine selects sqlite.
func NewByEngine(engine, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineSQLite:
		return NewSQLiteStore(path)
	case EngineJSON:
		return NewJSONStore(path)
	default:
		return nil, errors.New("unsupported store engine: " + engine)
	}
}
