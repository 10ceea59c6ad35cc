// Package storage defines the pluggable recording backend a dive session is
// written to, and the factory selecting one from configuration.
package storage

import "github.com/kisscool-fr/simdive/internal/model"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *model.DiveSession) error
	EndSession() error

	// State recording
	RecordSnapshot(s *model.SnapshotRecord) error
	RecordEvent(e *model.EventRecord) error
}

// Exportable is an optional interface for storage backends that produce a
// session file on EndSession.
type Exportable interface {
	GetExportedFilePath() string
}
