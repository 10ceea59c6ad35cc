// Package gormstore implements the storage.Backend interface on a gorm
// database with internal queues and a background writer goroutine. It serves
// both Postgres and SQLite; the SQLite variant runs in memory and is vacuumed
// to a session file on EndSession.
package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kisscool-fr/simdive/internal/database"
	"github.com/kisscool-fr/simdive/internal/model"
	"github.com/kisscool-fr/simdive/internal/queue"
)

// Config holds the gorm backend settings.
type Config struct {
	Type          string // "postgres" or "sqlite"
	OutputDir     string // where SQLite session files are dumped
	FlushInterval time.Duration
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	cfg Config
	log zerolog.Logger
	mgr *database.Manager

	snapshots *queue.Queue[model.SnapshotRecord]
	events    *queue.Queue[model.EventRecord]

	mu       sync.Mutex
	session  *model.DiveSession
	stopChan chan struct{}
}

// New creates a new gorm storage backend.
func New(cfg Config, log zerolog.Logger) *Backend {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Backend{
		cfg:       cfg,
		log:       log,
		mgr:       database.NewManager(log),
		snapshots: queue.New[model.SnapshotRecord](),
		events:    queue.New[model.EventRecord](),
	}
}

// Init connects to the database, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.mgr.DB == nil {
		if err := b.connect(); err != nil {
			return err
		}
	}

	if err := b.mgr.Setup(); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	b.stopChan = make(chan struct{})
	go b.writerLoop(b.stopChan)
	return nil
}

func (b *Backend) connect() error {
	if b.cfg.Type == "sqlite" {
		b.mgr.ShouldSaveLocal = true
		db, err := b.mgr.GetSqliteDB("")
		if err != nil {
			return fmt.Errorf("failed to open SQLite DB: %w", err)
		}
		b.mgr.DB = db
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		b.mgr.SqlDB = sqlDB
		b.mgr.IsValid = true
		return nil
	}
	return b.mgr.Connect()
}

// Close stops the writer, flushes pending records and closes the connection.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.stopChan = nil
	}
	b.flush()
	if b.mgr.SqlDB != nil {
		return b.mgr.SqlDB.Close()
	}
	return nil
}

// StartSession creates the session row. Records queued before the session
// started are discarded.
func (b *Backend) StartSession(session *model.DiveSession) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.snapshots.Clear()
	b.events.Clear()

	if err := b.mgr.DB.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.session = session

	if b.mgr.ShouldSaveLocal {
		if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		b.mgr.SqliteFilePath = filepath.Join(b.cfg.OutputDir, sessionFileName(session))
	}

	b.log.Info().Str("profile", session.ProfileID).Uint("sessionId", session.ID).Msg("Session started")
	return nil
}

// EndSession flushes pending records, stamps the end time and, for the
// in-memory SQLite variant, dumps the database to the session file.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	b.flush()

	b.session.EndTime = time.Now().UTC()
	if err := b.mgr.DB.Save(b.session).Error; err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}

	if b.mgr.ShouldSaveLocal {
		if err := b.mgr.DumpMemoryToDisk(); err != nil {
			return err
		}
	}
	b.session = nil
	return nil
}

// RecordSnapshot queues a snapshot for the next batch write. Records arriving
// before a session has started are silently ignored.
func (b *Backend) RecordSnapshot(s *model.SnapshotRecord) error {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session == nil {
		return nil
	}
	s.SessionID = session.ID
	b.snapshots.Push(*s)
	return nil
}

// RecordEvent queues an event for the next batch write.
func (b *Backend) RecordEvent(e *model.EventRecord) error {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session == nil {
		return nil
	}
	e.SessionID = session.ID
	b.events.Push(*e)
	return nil
}

// GetExportedFilePath returns the SQLite session file path, or empty when
// writing straight to Postgres.
func (b *Backend) GetExportedFilePath() string {
	if b.mgr.ShouldSaveLocal {
		return b.mgr.SqliteFilePath
	}
	return ""
}

func (b *Backend) writerLoop(stop chan struct{}) {
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

// flush writes all queued records in two batch inserts.
func (b *Backend) flush() {
	if b.mgr.DB == nil {
		return
	}

	if batch := b.snapshots.GetAndEmpty(); len(batch) > 0 {
		if err := b.mgr.DB.Create(&batch).Error; err != nil {
			b.log.Error().Err(err).Int("count", len(batch)).Msg("Failed to write snapshot batch")
		}
	}
	if batch := b.events.GetAndEmpty(); len(batch) > 0 {
		if err := b.mgr.DB.Create(&batch).Error; err != nil {
			b.log.Error().Err(err).Int("count", len(batch)).Msg("Failed to write event batch")
		}
	}
}

func sessionFileName(session *model.DiveSession) string {
	name := strings.ReplaceAll(session.ProfileID, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	return fmt.Sprintf("%s_%s.db", name, session.StartTime.Format("20060102_150405"))
}
