// Package recorder bridges the simulation engine and the storage backend: it
// subscribes to published snapshots and fired events, converts them to session
// records and forwards them, optionally shipping live telemetry to InfluxDB.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/kisscool-fr/simdive/internal/engine"
	"github.com/kisscool-fr/simdive/internal/model"
	"github.com/kisscool-fr/simdive/internal/profile"
	"github.com/kisscool-fr/simdive/internal/storage"
	"github.com/kisscool-fr/simdive/internal/telemetry"
)

// Recorder forwards engine output to a storage backend.
type Recorder struct {
	backend   storage.Backend
	telemetry *telemetry.Manager // optional
	logger    *slog.Logger

	mu       sync.Mutex
	session  *model.DiveSession
	lastTime float64

	// OTEL metrics
	snapshotsRecorded metric.Int64Counter
	eventsRecorded    metric.Int64Counter
	recordErrors      metric.Int64Counter
}

// New creates a recorder writing to the given backend. The telemetry manager
// may be nil when live metrics are disabled.
//
// Uses the global OTel meter for metrics (no-op if not configured).
func New(backend storage.Backend, tm *telemetry.Manager, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		backend:   backend,
		telemetry: tm,
		logger:    logger,
	}

	m := meter()
	var err error

	r.snapshotsRecorded, err = m.Int64Counter(
		"simdive.recorder.snapshots",
		metric.WithDescription("Total snapshots forwarded to storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshots counter: %w", err)
	}

	r.eventsRecorded, err = m.Int64Counter(
		"simdive.recorder.events",
		metric.WithDescription("Total dive events forwarded to storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}

	r.recordErrors, err = m.Int64Counter(
		"simdive.recorder.errors",
		metric.WithDescription("Total failed record writes"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}

	return r, nil
}

// Attach subscribes the recorder to an engine's snapshots and events.
func (r *Recorder) Attach(e *engine.Engine) {
	e.OnSnapshot(r.handleSnapshot)
	e.OnEvent(r.handleEvent)
}

// Start opens a session for the given profile. Snapshots arriving before
// Start or after Stop are dropped.
func (r *Recorder) Start(p *profile.Profile, gfLow, gfHigh float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := model.NewDiveSession(p, time.Now().UTC())
	session.GFLow = gfLow
	session.GFHigh = gfHigh

	if err := r.backend.StartSession(session); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	r.session = session
	r.lastTime = -1
	r.logger.Info("Recording session started", "profile", p.ID)
	return nil
}

// Stop finalizes the session.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil
	}
	r.session = nil
	if err := r.backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	r.logger.Info("Recording session ended")
	return nil
}

// handleSnapshot runs on the engine's advance path. Replays (seek, step
// backward) re-publish earlier times; only forward progress is recorded.
func (r *Recorder) handleSnapshot(s engine.DiveState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil || s.Time <= r.lastTime {
		return
	}
	r.lastTime = s.Time

	if err := r.backend.RecordSnapshot(model.NewSnapshotRecord(r.session.ID, s)); err != nil {
		r.recordErrors.Add(context.Background(), 1)
		r.logger.Error("Failed to record snapshot", "error", err, "diveTime", s.Time)
		return
	}
	r.snapshotsRecorded.Add(context.Background(), 1)

	if r.telemetry != nil {
		point := telemetry.PointFromSnapshot(r.session.ProfileID, s)
		if err := r.telemetry.WritePoint(context.Background(), telemetry.BucketDiveState, point); err != nil {
			r.logger.Warn("Failed to ship telemetry point", "error", err)
		}
	}
}

func (r *Recorder) handleEvent(ev profile.Event, diveTime float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return
	}

	if err := r.backend.RecordEvent(model.NewEventRecord(r.session.ID, ev)); err != nil {
		r.recordErrors.Add(context.Background(), 1)
		r.logger.Error("Failed to record event", "error", err, "type", ev.Type)
		return
	}
	r.eventsRecorded.Add(context.Background(), 1)

	if r.telemetry != nil {
		point := telemetry.PointFromEvent(r.session.ProfileID, ev, diveTime)
		if err := r.telemetry.WritePoint(context.Background(), telemetry.BucketEvents, point); err != nil {
			r.logger.Warn("Failed to ship telemetry point", "error", err)
		}
	}
}
