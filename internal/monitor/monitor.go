// Package monitor runs a background goroutine that periodically dumps the
// live simulation status to a file, for external tools to poll during long
// accelerated runs.
package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kisscool-fr/simdive/internal/engine"
	"github.com/kisscool-fr/simdive/internal/logging"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Engine     *engine.Engine
	StatusDir  string
	Interval   time.Duration
}

// Status is the snapshot written to the status file.
type Status struct {
	Time     time.Time              `json:"time"`
	Playback engine.PlaybackControl `json:"playback"`
	Dive     *engine.DiveState      `json:"dive,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// StatusFilePath returns the path of the file the monitor writes.
func (s *Service) StatusFilePath() string {
	return filepath.Join(s.deps.StatusDir, "status.json")
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		for {
			select {
			case <-stop:
				return
			default:
				time.Sleep(s.deps.Interval)

				state := s.deps.Engine.State()
				if state == nil {
					continue
				}

				status := Status{
					Time:     time.Now().UTC(),
					Playback: s.deps.Engine.Playback(),
					Dive:     state,
				}
				if err := s.writeStatus(status); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

// writeStatus replaces the status file atomically so pollers never read a
// half-written document.
func (s *Service) writeStatus(status Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.StatusFilePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.StatusFilePath())
}
