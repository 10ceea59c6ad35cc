// Package model defines the database structures a recorded dive session is
// stored as, plus converters from the engine's published snapshots.
package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&DiveSession{},
	&SnapshotRecord{},
	&EventRecord{},
}

// DiveSession is one simulated dive run of a profile.
type DiveSession struct {
	gorm.Model
	ProfileID   string    `json:"profileId" gorm:"size:127;index:idx_session_profile_id"`
	ProfileName string    `json:"profileName" gorm:"size:200"`
	Description string    `json:"description" gorm:"size:2000"`
	StartTime   time.Time `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime     time.Time `json:"endTime" gorm:"type:timestamptz"`

	SiteName  string     `json:"siteName" gorm:"size:200"`
	Latitude  float64    `json:"latitude" gorm:"-"`
	Longitude float64    `json:"longitude" gorm:"-"`
	Location  geom.Point `json:"location"` // EPSG:3857

	GFLow               float64 `json:"gfLow"`
	GFHigh              float64 `json:"gfHigh"`
	InitialTankPressure float64 `json:"initialTankPressure"`
	TankVolume          float64 `json:"tankVolume"`
	SACRate             float64 `json:"sacRate"`

	Snapshots []SnapshotRecord
	Events    []EventRecord
}

func (*DiveSession) TableName() string {
	return "dive_sessions"
}

// SnapshotRecord is one engine snapshot flattened for storage. Per-compartment
// pressures, deco stops and warnings keep their structure as JSON columns.
type SnapshotRecord struct {
	ID        uint        `json:"id" gorm:"primarykey"`
	SessionID uint        `json:"sessionId" gorm:"index:idx_snapshot_session_id"`
	Session   DiveSession `json:"-" gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Time      time.Time   `json:"time" gorm:"type:timestamptz;index:idx_snapshot_time"` // wall-clock write time

	DiveTime float64 `json:"diveTime"` // minutes from dive start
	Depth    float64 `json:"depth"`
	MaxDepth float64 `json:"maxDepth"`

	Ceiling         float64        `json:"ceiling"`
	NDL             int            `json:"ndl"`
	TTS             int            `json:"tts"`
	TissuePressures datatypes.JSON `json:"tissuePressures" gorm:"type:jsonb;default:'[]'"`
	Stops           datatypes.JSON `json:"stops" gorm:"type:jsonb;default:'[]'"`

	TankPressure     float64 `json:"tankPressure"`
	RemainingMinutes int     `json:"remainingMinutes"`
	CurrentRate      float64 `json:"currentRate"`
	AverageRate      float64 `json:"averageRate"`
	TotalConsumed    float64 `json:"totalConsumed"`

	AscentRate      float64 `json:"ascentRate"`
	AscentViolation bool    `json:"ascentViolation"`

	SafetyStopRequired  bool    `json:"safetyStopRequired"`
	SafetyStopActive    bool    `json:"safetyStopActive"`
	SafetyStopRemaining float64 `json:"safetyStopRemaining"` // seconds

	Warnings datatypes.JSON `json:"warnings" gorm:"type:jsonb;default:'[]'"`
}

func (*SnapshotRecord) TableName() string {
	return "snapshot_records"
}

// EventRecord is one profile event as it fired during the session.
type EventRecord struct {
	ID        uint        `json:"id" gorm:"primarykey"`
	SessionID uint        `json:"sessionId" gorm:"index:idx_event_session_id"`
	Session   DiveSession `json:"-" gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Time      time.Time   `json:"time" gorm:"type:timestamptz"`

	DiveTime   float64 `json:"diveTime"` // minutes from dive start
	Type       string  `json:"type" gorm:"size:64;index:idx_event_type"`
	Multiplier float64 `json:"multiplier"`
	Message    string  `json:"message" gorm:"size:255"`
}

func (*EventRecord) TableName() string {
	return "event_records"
}
