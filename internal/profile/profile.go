// Package profile defines the static input data for a simulated dive: the
// depth-time waypoint sequence, timed dive events, tank parameters and
// descriptive metadata. A loaded profile is immutable; the engine only reads
// it. The piecewise-linear depth interpolation contract lives here because
// the correctness of the whole simulation depends on it.
package profile

import "sort"

// EventType identifies one of the timed dive event kinds.
type EventType string

const (
	EventBreathingRateIncrease EventType = "breathingRateIncrease"
	EventBreathingRateDecrease EventType = "breathingRateDecrease"
	EventAirSharingStart       EventType = "airSharingStart"
	EventAirSharingEnd         EventType = "airSharingEnd"
	EventLowAirWarning         EventType = "lowAirWarning"
	EventCriticalAirWarning    EventType = "criticalAirWarning"
	EventRapidAscent           EventType = "rapidAscent"
	EventSafetyStopStart       EventType = "safetyStopStart"
	EventSafetyStopEnd         EventType = "safetyStopEnd"
)

// knownEventTypes is the closed set accepted by validation.
var knownEventTypes = map[EventType]bool{
	EventBreathingRateIncrease: true,
	EventBreathingRateDecrease: true,
	EventAirSharingStart:       true,
	EventAirSharingEnd:         true,
	EventLowAirWarning:         true,
	EventCriticalAirWarning:    true,
	EventRapidAscent:           true,
	EventSafetyStopStart:       true,
	EventSafetyStopEnd:         true,
}

// Waypoint is one point of the planned depth profile.
type Waypoint struct {
	Time  float64 `json:"time"`  // minutes from dive start
	Depth float64 `json:"depth"` // meters
}

// Event is a timed occurrence during the dive. Multiplier is only meaningful
// for breathing-rate changes; Message, when set, surfaces as a warning when
// the event fires.
type Event struct {
	Time       float64   `json:"time"` // minutes from dive start
	Type       EventType `json:"type"`
	Multiplier float64   `json:"multiplier,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Site is optional dive-site metadata carried for recording. Coordinates may
// be given as numeric fields or as a single "lat,lon" string.
type Site struct {
	Name      string  `json:"name,omitempty"`
	Coords    string  `json:"coords,omitempty"` // "lat,lon", decimal degrees
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Profile is a complete dive plan. Immutable once loaded.
type Profile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Site        Site   `json:"site,omitempty"`

	InitialTankPressure float64 `json:"initialTankPressure"` // bar
	TankVolume          float64 `json:"tankVolume"`          // liters
	SACRate             float64 `json:"sacRate"`             // L/min at surface

	Waypoints []Waypoint `json:"waypoints"`
	Events    []Event    `json:"events,omitempty"`
}

// TotalTime returns the dive duration in minutes: the time of the last
// waypoint, or zero for an empty profile.
func (p *Profile) TotalTime() float64 {
	if len(p.Waypoints) == 0 {
		return 0
	}
	return p.Waypoints[len(p.Waypoints)-1].Time
}

// MaxPlannedDepth returns the deepest waypoint depth.
func (p *Profile) MaxPlannedDepth() float64 {
	max := 0.0
	for _, w := range p.Waypoints {
		if w.Depth > max {
			max = w.Depth
		}
	}
	return max
}

// DepthAt returns the planned depth at time t by linear interpolation
// between the bracketing waypoints, clamped to the first/last waypoint's
// depth outside the sequence's time range.
func (p *Profile) DepthAt(t float64) float64 {
	if len(p.Waypoints) == 0 {
		return 0
	}
	first := p.Waypoints[0]
	if t <= first.Time {
		return first.Depth
	}
	last := p.Waypoints[len(p.Waypoints)-1]
	if t >= last.Time {
		return last.Depth
	}

	// Find the first waypoint at or after t.
	i := sort.Search(len(p.Waypoints), func(i int) bool {
		return p.Waypoints[i].Time >= t
	})
	w1 := p.Waypoints[i]
	w0 := p.Waypoints[i-1]
	if w1.Time == w0.Time {
		return w1.Depth
	}
	return w0.Depth + (w1.Depth-w0.Depth)*(t-w0.Time)/(w1.Time-w0.Time)
}
