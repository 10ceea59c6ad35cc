// Package air models tank pressure and breathing-rate state for a single
// air tank. Consumption scales linearly with ambient pressure; timed dive
// events (exertion, air sharing) adjust the current rate relative to the
// diver's baseline SAC rate.
package air

import (
	"math"

	"github.com/kisscool-fr/simdive/internal/deco"
	"github.com/kisscool-fr/simdive/internal/profile"
)

// Fixed recreational warning thresholds, independent of tank size.
const (
	LowPressureThreshold      = 50.0 // bar
	CriticalPressureThreshold = 20.0 // bar
)

// DefaultExertionMultiplier applies to breathing-rate-increase events that
// carry no explicit multiplier.
const DefaultExertionMultiplier = 1.5

// airSharingMultiplier doubles consumption while donating air.
const airSharingMultiplier = 2.0

// Snapshot is the externally visible air state at an instant.
type Snapshot struct {
	TankPressure     float64 `json:"tankPressure"`     // bar
	RemainingMinutes int     `json:"remainingMinutes"` // at current depth and rate
	CurrentRate      float64 `json:"currentRate"`      // L/min at surface
	AverageRate      float64 `json:"averageRate"`      // mean of recorded rates
	TotalConsumed    float64 `json:"totalConsumed"`    // liters
}

// Model tracks one tank through a dive.
type Model struct {
	initialPressure float64
	tankVolume      float64
	baselineRate    float64

	tankPressure  float64
	currentRate   float64
	totalConsumed float64
	rateHistory   []float64
}

// New creates a model with a full tank. Initial pressure is bar, tank volume
// liters, baseline the surface consumption rate in L/min.
func New(initialPressure, tankVolume, baselineRate float64) *Model {
	m := &Model{
		initialPressure: initialPressure,
		tankVolume:      tankVolume,
		baselineRate:    baselineRate,
	}
	m.Reset()
	return m
}

// Reset restores tank pressure, rate and history to their initial values.
func (m *Model) Reset() {
	m.tankPressure = m.initialPressure
	m.currentRate = m.baselineRate
	m.totalConsumed = 0
	m.rateHistory = nil
}

// depthFactor scales surface consumption to the given depth.
func depthFactor(depth float64) float64 {
	return deco.AmbientPressure(depth) / deco.SurfacePressure
}

// Consume draws air for an interval at the given depth and records the
// instantaneous rate. Tank pressure is floored at zero.
func (m *Model) Consume(depth, minutes float64) {
	if minutes <= 0 {
		return
	}
	liters := m.currentRate * depthFactor(depth) * minutes
	bar := liters / m.tankVolume

	m.tankPressure -= bar
	if m.tankPressure < 0 {
		m.tankPressure = 0
	}
	m.totalConsumed += liters
	m.rateHistory = append(m.rateHistory, m.currentRate)
}

// RemainingMinutes returns how long the tank lasts at the given depth with
// the current rate, floored to whole minutes. Zero once the tank is empty.
func (m *Model) RemainingMinutes(depth float64) int {
	if m.tankPressure <= 0 {
		return 0
	}
	liters := m.tankPressure * m.tankVolume
	perMinute := m.currentRate * depthFactor(depth)
	if perMinute <= 0 {
		return 0
	}
	return int(math.Floor(liters / perMinute))
}

// AverageRate returns the arithmetic mean of all recorded rates since the
// dive started, or the baseline before any sample exists.
func (m *Model) AverageRate() float64 {
	if len(m.rateHistory) == 0 {
		return m.baselineRate
	}
	sum := 0.0
	for _, r := range m.rateHistory {
		sum += r
	}
	return sum / float64(len(m.rateHistory))
}

// ApplyEvent adjusts the current rate for breathing and air-sharing events.
// Other event kinds are no-ops for this model.
func (m *Model) ApplyEvent(ev profile.Event) {
	switch ev.Type {
	case profile.EventBreathingRateIncrease:
		mult := ev.Multiplier
		if mult <= 0 {
			mult = DefaultExertionMultiplier
		}
		m.currentRate = m.baselineRate * mult
	case profile.EventBreathingRateDecrease, profile.EventAirSharingEnd:
		m.currentRate = m.baselineRate
	case profile.EventAirSharingStart:
		m.currentRate = m.baselineRate * airSharingMultiplier
	}
}

// TankPressure returns the current tank pressure in bar.
func (m *Model) TankPressure() float64 { return m.tankPressure }

// CurrentRate returns the active surface consumption rate in L/min.
func (m *Model) CurrentRate() float64 { return m.currentRate }

// TotalConsumed returns the liters drawn since the dive started.
func (m *Model) TotalConsumed() float64 { return m.totalConsumed }

// LowPressure reports whether the tank is at or below the low-air threshold.
func (m *Model) LowPressure() bool {
	return m.tankPressure <= LowPressureThreshold
}

// CriticalPressure reports whether the tank is at or below the critical-air
// threshold.
func (m *Model) CriticalPressure() bool {
	return m.tankPressure <= CriticalPressureThreshold
}

// Snapshot assembles the full air state at the given depth.
func (m *Model) Snapshot(depth float64) Snapshot {
	return Snapshot{
		TankPressure:     m.tankPressure,
		RemainingMinutes: m.RemainingMinutes(depth),
		CurrentRate:      m.currentRate,
		AverageRate:      m.AverageRate(),
		TotalConsumed:    m.totalConsumed,
	}
}
