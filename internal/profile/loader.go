package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kisscool-fr/simdive/internal/geo"
)

// Validation errors returned (wrapped) by Parse and Load.
var (
	ErrNoWaypoints       = errors.New("profile has no waypoints")
	ErrWaypointOrder     = errors.New("waypoint times must be non-decreasing")
	ErrFirstWaypointTime = errors.New("first waypoint must be at time 0")
	ErrNegativeDepth     = errors.New("waypoint depth must be >= 0")
	ErrTankPressure      = errors.New("initial tank pressure must be > 0")
	ErrTankVolume        = errors.New("tank volume must be > 0")
	ErrSACRate           = errors.New("sac rate must be > 0")
	ErrUnknownEventType  = errors.New("unknown event type")
	ErrEventTime         = errors.New("event time outside dive duration")
)

// Parse decodes and validates a profile JSON document.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads and validates a profile JSON file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the structural invariants of the profile.
func (p *Profile) Validate() error {
	if len(p.Waypoints) == 0 {
		return ErrNoWaypoints
	}
	if p.Waypoints[0].Time != 0 {
		return ErrFirstWaypointTime
	}
	prev := p.Waypoints[0]
	if prev.Depth < 0 {
		return fmt.Errorf("waypoint 0: %w", ErrNegativeDepth)
	}
	for i, w := range p.Waypoints[1:] {
		if w.Time < prev.Time {
			return fmt.Errorf("waypoint %d: %w", i+1, ErrWaypointOrder)
		}
		if w.Depth < 0 {
			return fmt.Errorf("waypoint %d: %w", i+1, ErrNegativeDepth)
		}
		prev = w
	}

	if p.InitialTankPressure <= 0 {
		return ErrTankPressure
	}
	if p.TankVolume <= 0 {
		return ErrTankVolume
	}
	if p.SACRate <= 0 {
		return ErrSACRate
	}

	if p.Site.Coords != "" {
		if _, err := geo.SiteFromString(p.Site.Coords); err != nil {
			return fmt.Errorf("site coords %q: %w", p.Site.Coords, err)
		}
	}

	total := p.TotalTime()
	for i, ev := range p.Events {
		if !knownEventTypes[ev.Type] {
			return fmt.Errorf("event %d (%q): %w", i, ev.Type, ErrUnknownEventType)
		}
		if ev.Time < 0 || ev.Time > total {
			return fmt.Errorf("event %d at t=%v: %w", i, ev.Time, ErrEventTime)
		}
	}
	return nil
}
