// Package memory stores a dive session in memory and exports it to a JSON
// file (optionally gzipped) when the session ends.
package memory

import (
	"sync"
	"time"

	"github.com/kisscool-fr/simdive/internal/model"
)

// Config holds the memory backend settings.
type Config struct {
	OutputDir      string
	CompressOutput bool
}

// Backend accumulates session records in memory.
type Backend struct {
	cfg Config

	mu        sync.RWMutex
	session   *model.DiveSession
	snapshots []model.SnapshotRecord
	events    []model.EventRecord

	lastExportPath string
}

// New creates a new memory backend
func New(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new dive session, discarding any
// previously accumulated records.
func (b *Backend) StartSession(session *model.DiveSession) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = session
	b.snapshots = nil
	b.events = nil
	return nil
}

// RecordSnapshot appends a snapshot record. Records arriving before a
// session has started are silently ignored.
func (b *Backend) RecordSnapshot(s *model.SnapshotRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	b.snapshots = append(b.snapshots, *s)
	return nil
}

// RecordEvent appends an event record.
func (b *Backend) RecordEvent(e *model.EventRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	b.events = append(b.events, *e)
	return nil
}

// EndSession finalizes and exports the session data.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	b.session.EndTime = time.Now().UTC()
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

// GetExportedFilePath returns the path of the last exported session file.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// SnapshotCount returns the number of accumulated snapshots.
func (b *Backend) SnapshotCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snapshots)
}
