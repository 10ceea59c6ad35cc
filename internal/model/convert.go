package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/kisscool-fr/simdive/internal/engine"
	"github.com/kisscool-fr/simdive/internal/geo"
	"github.com/kisscool-fr/simdive/internal/profile"
)

// NewDiveSession builds a session record from a profile. The dive site, when
// present, is stored as an EPSG:3857 point.
func NewDiveSession(p *profile.Profile, start time.Time) *DiveSession {
	s := &DiveSession{
		ProfileID:           p.ID,
		ProfileName:         p.Name,
		Description:         p.Description,
		StartTime:           start,
		SiteName:            p.Site.Name,
		Latitude:            p.Site.Latitude,
		Longitude:           p.Site.Longitude,
		InitialTankPressure: p.InitialTankPressure,
		TankVolume:          p.TankVolume,
		SACRate:             p.SACRate,
	}
	if p.Site.Coords != "" {
		if point, err := geo.SiteFromString(p.Site.Coords); err == nil {
			s.Location = point
		}
	} else if p.Site.Latitude != 0 || p.Site.Longitude != 0 {
		if point, err := geo.Coords3857From4326(p.Site.Longitude, p.Site.Latitude); err == nil {
			s.Location = point
		}
	}
	return s
}

// NewSnapshotRecord flattens an engine snapshot for storage.
func NewSnapshotRecord(sessionID uint, s engine.DiveState) *SnapshotRecord {
	return &SnapshotRecord{
		SessionID: sessionID,
		Time:      time.Now().UTC(),

		DiveTime: s.Time,
		Depth:    s.Depth,
		MaxDepth: s.MaxDepth,

		Ceiling:         s.Deco.Ceiling,
		NDL:             s.Deco.NDL,
		TTS:             s.Deco.TTS,
		TissuePressures: toJSON(s.Deco.TissuePressures),
		Stops:           toJSON(s.Deco.Stops),

		TankPressure:     s.Air.TankPressure,
		RemainingMinutes: s.Air.RemainingMinutes,
		CurrentRate:      s.Air.CurrentRate,
		AverageRate:      s.Air.AverageRate,
		TotalConsumed:    s.Air.TotalConsumed,

		AscentRate:      s.Ascent.Rate,
		AscentViolation: s.Ascent.Violation,

		SafetyStopRequired:  s.SafetyStop.Required,
		SafetyStopActive:    s.SafetyStop.Active,
		SafetyStopRemaining: s.SafetyStop.Remaining,

		Warnings: toJSON(s.Warnings),
	}
}

// NewEventRecord stores a fired profile event.
func NewEventRecord(sessionID uint, ev profile.Event) *EventRecord {
	return &EventRecord{
		SessionID:  sessionID,
		Time:       time.Now().UTC(),
		DiveTime:   ev.Time,
		Type:       string(ev.Type),
		Multiplier: ev.Multiplier,
		Message:    ev.Message,
	}
}

// toJSON marshals v into a JSON column value. Nil slices become empty arrays
// so the column default matches.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}
