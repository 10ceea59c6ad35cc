// Package engine owns the simulated dive timeline. It interpolates depth from
// the loaded profile, advances the decompression and air models, fires timed
// events, derives ascent-rate and safety-stop state, and publishes one
// immutable DiveState snapshot per time advance. Playback, stepping and
// seeking all funnel through the same advance path so the simulation stays
// deterministic regardless of how time moves.
package engine

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/kisscool-fr/simdive/internal/air"
	"github.com/kisscool-fr/simdive/internal/deco"
	"github.com/kisscool-fr/simdive/internal/profile"
)

// PlaybackState is the engine's playback mode.
type PlaybackState string

const (
	Stopped PlaybackState = "stopped"
	Playing PlaybackState = "playing"
	Paused  PlaybackState = "paused"
)

// MaxAscentRate is the maximum allowed ascending rate in m/min.
const MaxAscentRate = 10.0

// Safety stop parameters: required once the dive reaches the threshold depth,
// served in the stop band, counted down in seconds.
const (
	SafetyStopThreshold = 10.0  // meters max depth that makes the stop required
	SafetyStopDepth     = 5.0   // meters, nominal stop depth
	SafetyStopBandMin   = 4.0   // meters
	SafetyStopBandMax   = 6.0   // meters
	SafetyStopSeconds   = 180.0 // full stop duration
)

// eventWindow is the matching tolerance around an event's scheduled time, in
// minutes. Events are not guaranteed to fire when a single advance jumps past
// the whole window; replayed stepping and seeking run at one-second
// resolution, which always lands inside it.
const eventWindow = 0.1

// replayStep is the fixed resolution for seek and backward-step replay,
// in minutes.
const replayStep = 1.0 / 60.0

// Warning messages in display priority order.
const (
	WarningCriticalAir = "CRITICAL AIR"
	WarningLowAir      = "LOW AIR"
	WarningAscentRate  = "ASCENT TOO FAST"
	WarningDecoStop    = "DECO STOP REQUIRED"
)

// allowedSpeeds is the closed set accepted by SetSpeed.
var allowedSpeeds = map[float64]bool{0.5: true, 1: true, 2: true, 5: true, 10: true}

// PlaybackControl is the externally visible playback state.
type PlaybackControl struct {
	State       PlaybackState `json:"state"`
	Speed       float64       `json:"speed"`
	CurrentTime float64       `json:"currentTime"` // minutes
	TotalTime   float64       `json:"totalTime"`   // minutes
	StepSize    float64       `json:"stepSize"`    // seconds
}

// AscentState describes the diver's vertical speed over the last advance.
// Positive rate means descending.
type AscentState struct {
	Rate      float64 `json:"rate"` // m/min
	Violation bool    `json:"violation"`
	MaxRate   float64 `json:"maxRate"` // m/min, allowed ascending magnitude
}

// SafetyStopState tracks the recreational safety stop.
type SafetyStopState struct {
	Required  bool    `json:"required"`
	Active    bool    `json:"active"`
	Completed bool    `json:"completed"`
	Depth     float64 `json:"depth"`     // meters
	Duration  float64 `json:"duration"`  // seconds
	Remaining float64 `json:"remaining"` // seconds
}

// DiveState is the engine's sole output: the complete simulated dive state at
// one instant. A new value replaces it on every advance; consumers only read.
type DiveState struct {
	Time       float64         `json:"time"`     // minutes
	Depth      float64         `json:"depth"`    // meters, rounded to 0.1
	RawDepth   float64         `json:"rawDepth"` // meters, unrounded
	MaxDepth   float64         `json:"maxDepth"` // meters
	Deco       deco.Snapshot   `json:"deco"`
	Air        air.Snapshot    `json:"air"`
	Ascent     AscentState     `json:"ascent"`
	SafetyStop SafetyStopState `json:"safetyStop"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// eventKey identifies an event occurrence for once-only processing.
type eventKey struct {
	typ  profile.EventType
	time float64
}

// Options configures a new engine.
type Options struct {
	GFLow        float64       // gradient factor low, default 0.30
	GFHigh       float64       // gradient factor high, default 0.85
	Speed        float64       // initial playback speed, default 1
	StepSize     float64       // manual step size in seconds, default 10
	TickInterval time.Duration // playback tick period, default 100ms
	Logger       *slog.Logger
}

// Engine drives a single dive simulation. All state is owned by the instance
// and guarded by one mutex; the playback goroutine is cancelled before any
// synchronous mutation, so only one advance is ever in flight.
type Engine struct {
	mu     sync.Mutex
	logger *slog.Logger

	gfLow, gfHigh float64
	tickInterval  time.Duration

	profile *profile.Profile
	deco    *deco.Model
	air     *air.Model

	playback  PlaybackControl
	state     *DiveState
	maxDepth  float64
	prevDepth float64
	processed map[eventKey]struct{}
	safety    SafetyStopState

	running  bool
	stopChan chan struct{}

	listeners      []func(DiveState)
	eventListeners []func(profile.Event, float64)
}

// New creates an engine with no profile loaded. Control operations are no-ops
// until LoadProfile is called.
func New(opts Options) *Engine {
	if opts.Speed == 0 || !allowedSpeeds[opts.Speed] {
		opts.Speed = 1
	}
	if opts.StepSize <= 0 {
		opts.StepSize = 10
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		logger:       opts.Logger,
		gfLow:        opts.GFLow,
		gfHigh:       opts.GFHigh,
		tickInterval: opts.TickInterval,
		playback: PlaybackControl{
			State:    Stopped,
			Speed:    opts.Speed,
			StepSize: opts.StepSize,
		},
	}
}

// OnSnapshot registers a listener invoked synchronously with every published
// snapshot, on the goroutine performing the advance. Listeners must not call
// back into the engine.
func (e *Engine) OnSnapshot(fn func(DiveState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// OnEvent registers a listener invoked synchronously with every fired dive
// event and the simulation time it fired at. Same constraints as OnSnapshot.
func (e *Engine) OnEvent(fn func(profile.Event, float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventListeners = append(e.eventListeners, fn)
}

// LoadProfile installs a dive profile and resets the whole simulation,
// publishing the initial snapshot at time zero.
func (e *Engine) LoadProfile(p *profile.Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelPlaybackLocked()
	e.profile = p
	e.deco = deco.New(e.gfLow, e.gfHigh)
	e.air = air.New(p.InitialTankPressure, p.TankVolume, p.SACRate)
	e.playback.State = Stopped
	e.playback.TotalTime = p.TotalTime()
	e.resetLocked()

	e.logger.Info("profile loaded",
		"id", p.ID,
		"totalTime", e.playback.TotalTime,
		"maxPlannedDepth", p.MaxPlannedDepth())
}

// resetLocked zeroes all path-dependent simulation state and publishes the
// time-zero snapshot. Callers hold the mutex and have a profile loaded.
func (e *Engine) resetLocked() {
	e.deco.Reset()
	e.air.Reset()
	e.playback.CurrentTime = 0
	e.maxDepth = 0
	e.processed = make(map[eventKey]struct{})
	e.safety = SafetyStopState{
		Depth:     SafetyStopDepth,
		Duration:  SafetyStopSeconds,
		Remaining: SafetyStopSeconds,
	}
	e.prevDepth = roundDepth(e.profile.DepthAt(0))
	e.advanceLocked(0)
}

// Play starts or resumes continuous playback. No-op without a profile or when
// already playing.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil || e.playback.State == Playing {
		return
	}
	if e.playback.CurrentTime >= e.playback.TotalTime {
		return
	}
	e.playback.State = Playing
	e.startLoopLocked()
}

// Pause suspends playback, cancelling the pending tick immediately.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playback.State != Playing {
		return
	}
	e.cancelPlaybackLocked()
	e.playback.State = Paused
}

// Stop halts playback and fully resets the simulation to time zero.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return
	}
	e.cancelPlaybackLocked()
	e.playback.State = Stopped
	e.resetLocked()
}

// StepForward pauses playback and advances by the configured step size,
// clamped to the end of the dive.
func (e *Engine) StepForward() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return
	}
	e.cancelPlaybackLocked()
	e.playback.State = Paused

	delta := e.playback.StepSize / 60
	if remaining := e.playback.TotalTime - e.playback.CurrentTime; delta > remaining {
		delta = remaining
	}
	if delta > 0 {
		e.advanceLocked(delta)
	}
}

// StepBackward pauses playback and moves back by the configured step size.
// Tissue and tank state are path-dependent, so the simulation is replayed
// from time zero to the new target.
func (e *Engine) StepBackward() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return
	}
	e.cancelPlaybackLocked()
	e.playback.State = Paused

	target := e.playback.CurrentTime - e.playback.StepSize/60
	if target < 0 {
		target = 0
	}
	e.replayLocked(target)
}

// SeekTo jumps to an absolute time by replaying from zero, then resumes
// playing if playback was active before the seek.
func (e *Engine) SeekTo(minutes float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return
	}
	wasPlaying := e.playback.State == Playing
	e.cancelPlaybackLocked()
	e.playback.State = Paused

	if minutes < 0 {
		minutes = 0
	}
	if minutes > e.playback.TotalTime {
		minutes = e.playback.TotalTime
	}
	e.replayLocked(minutes)

	if wasPlaying && e.playback.CurrentTime < e.playback.TotalTime {
		e.playback.State = Playing
		e.startLoopLocked()
	}
}

// SetSpeed changes the playback speed. Values outside the allowed set are
// ignored. The playback loop measures wall time per tick, so a speed change
// takes effect without drift.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !allowedSpeeds[speed] {
		return
	}
	e.playback.Speed = speed
}

// SetStepSize changes the manual step size in seconds. Non-positive values
// are ignored.
func (e *Engine) SetStepSize(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seconds <= 0 {
		return
	}
	e.playback.StepSize = seconds
}

// Playback returns a copy of the current playback control state.
func (e *Engine) Playback() PlaybackControl {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playback
}

// State returns the latest published snapshot, or nil before any profile has
// been loaded.
func (e *Engine) State() *DiveState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}
	cp := *e.state
	return &cp
}

// TissueSaturations returns per-compartment loading as percentages of the
// gradient-adjusted surface limit, or nil before any profile has been loaded.
func (e *Engine) TissueSaturations() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deco == nil {
		return nil
	}
	return e.deco.Saturations()
}

// Profile returns the loaded profile, or nil.
func (e *Engine) Profile() *profile.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// startLoopLocked launches the playback goroutine with a fresh stop channel.
func (e *Engine) startLoopLocked() {
	e.stopChan = make(chan struct{})
	e.running = true
	go e.playLoop(e.stopChan)
}

// cancelPlaybackLocked cancels the outstanding playback goroutine, if any.
func (e *Engine) cancelPlaybackLocked() {
	if e.running {
		close(e.stopChan)
		e.running = false
	}
}

// playLoop converts wall-clock time into simulated minutes at the configured
// speed and advances until the end of the dive or cancellation. The reference
// clock starts fresh on every loop so pauses never accumulate drift.
func (e *Engine) playLoop(stop chan struct{}) {
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		default:
			time.Sleep(e.tickInterval)

			now := time.Now()
			wall := now.Sub(last)
			last = now

			e.mu.Lock()
			// The channel may have been closed mid-sleep, with a newer loop
			// already owning playback; only the goroutine whose channel is
			// still current may advance.
			if e.stopChan != stop || e.playback.State != Playing {
				e.mu.Unlock()
				return
			}
			delta := wall.Seconds() * e.playback.Speed / 60
			remaining := e.playback.TotalTime - e.playback.CurrentTime
			if delta >= remaining {
				e.advanceLocked(remaining)
				e.playback.State = Paused
				e.running = false
				e.logger.Debug("playback reached end of dive", "totalTime", e.playback.TotalTime)
				e.mu.Unlock()
				return
			}
			e.advanceLocked(delta)
			e.mu.Unlock()
		}
	}
}

// replayLocked rebuilds the simulation from time zero to the target at fixed
// one-second resolution. Replay is the determinism mechanism: the same target
// always yields the same snapshot.
func (e *Engine) replayLocked(target float64) {
	e.resetLocked()
	for e.playback.TotalTime > 0 && target-e.playback.CurrentTime > replayStep {
		e.advanceLocked(replayStep)
	}
	if rest := target - e.playback.CurrentTime; rest > 0 {
		e.advanceLocked(rest)
	}
}

// roundDepth rounds to the nearest 0.1 m for display and threshold stability.
func roundDepth(d float64) float64 {
	return math.Round(d*10) / 10
}

// advanceLocked runs one simulation step of the given simulated-minutes delta
// and publishes the resulting snapshot. A zero delta recomputes state at the
// current time (used for the initial snapshot).
func (e *Engine) advanceLocked(delta float64) {
	newTime := e.playback.CurrentTime + delta

	// Raw depth feeds the numeric models; the rounded depth drives
	// threshold logic so jitter at a boundary does not flap it.
	rawDepth := e.profile.DepthAt(newTime)
	depth := roundDepth(rawDepth)

	if depth > e.maxDepth {
		e.maxDepth = depth
	}

	fired := e.fireEventsLocked(newTime)

	e.deco.Update(rawDepth, delta)
	e.air.Consume(rawDepth, delta)
	decoSnap := e.deco.Snapshot(rawDepth)
	airSnap := e.air.Snapshot(rawDepth)

	ascent := AscentState{MaxRate: MaxAscentRate}
	if delta > 0 {
		ascent.Rate = (depth - e.prevDepth) / delta
		ascent.Violation = ascent.Rate < -MaxAscentRate
	}

	e.updateSafetyStopLocked(depth, delta)

	warnings := e.collectWarnings(airSnap, ascent, decoSnap, fired)

	state := DiveState{
		Time:       newTime,
		Depth:      depth,
		RawDepth:   rawDepth,
		MaxDepth:   e.maxDepth,
		Deco:       decoSnap,
		Air:        airSnap,
		Ascent:     ascent,
		SafetyStop: e.safety,
		Warnings:   warnings,
	}

	e.playback.CurrentTime = newTime
	e.prevDepth = depth
	e.state = &state

	for _, fn := range e.listeners {
		fn(state)
	}
	for _, ev := range fired {
		for _, fn := range e.eventListeners {
			fn(ev, newTime)
		}
	}
}

// fireEventsLocked applies every not-yet-processed event whose scheduled time
// falls inside the matching window around t, and returns the events fired on
// this advance. The processed set keys on (type, time) so an event fires at
// most once per simulation pass; an advance that jumps past the whole window
// skips the event.
func (e *Engine) fireEventsLocked(t float64) []profile.Event {
	var fired []profile.Event
	for _, ev := range e.profile.Events {
		if math.Abs(ev.Time-t) > eventWindow {
			continue
		}
		key := eventKey{typ: ev.Type, time: ev.Time}
		if _, done := e.processed[key]; done {
			continue
		}
		e.processed[key] = struct{}{}
		e.air.ApplyEvent(ev)
		fired = append(fired, ev)
		e.logger.Debug("dive event fired", "type", ev.Type, "time", ev.Time)
	}
	return fired
}

// updateSafetyStopLocked advances the safety-stop state machine: the stop
// becomes required once the dive reaches the threshold depth, counts down
// while the diver holds the stop band, and is completed when the countdown
// hits zero.
func (e *Engine) updateSafetyStopLocked(depth, delta float64) {
	if e.safety.Completed {
		e.safety.Active = false
		return
	}
	if e.maxDepth >= SafetyStopThreshold {
		e.safety.Required = true
	}
	e.safety.Active = e.safety.Required &&
		depth >= SafetyStopBandMin && depth <= SafetyStopBandMax

	if e.safety.Active && delta > 0 {
		e.safety.Remaining -= delta * 60
		if e.safety.Remaining <= 0 {
			e.safety.Remaining = 0
			e.safety.Completed = true
			e.safety.Required = false
			e.safety.Active = false
		}
	}
}

// collectWarnings assembles the active warning list in display priority
// order: air first (critical supersedes low), then ascent violation, then a
// mandatory deco obligation, then any message carried by an event fired on
// this advance.
func (e *Engine) collectWarnings(airSnap air.Snapshot, ascent AscentState, decoSnap deco.Snapshot, fired []profile.Event) []string {
	var warnings []string
	switch {
	case airSnap.TankPressure <= air.CriticalPressureThreshold:
		warnings = append(warnings, WarningCriticalAir)
	case airSnap.TankPressure <= air.LowPressureThreshold:
		warnings = append(warnings, WarningLowAir)
	}
	if ascent.Violation {
		warnings = append(warnings, WarningAscentRate)
	}
	if decoSnap.Ceiling > 0 {
		warnings = append(warnings, WarningDecoStop)
	}
	for _, ev := range fired {
		if ev.Message != "" {
			warnings = append(warnings, ev.Message)
		}
	}
	return warnings
}
